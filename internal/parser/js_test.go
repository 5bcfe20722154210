package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resident-x/go-omnik/internal/domain"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err, "Failed to load fixture %s", name)
	return string(raw)
}

func TestJSInverterWebData(t *testing.T) {
	payload := loadFixture(t, "status_webdata.js")

	inverter, err := JSInverter(payload)
	require.NoError(t, err)

	require.NotNil(t, inverter.SerialNumber)
	assert.Equal(t, "NLDN012345CS4321", *inverter.SerialNumber)
	require.NotNil(t, inverter.Model)
	assert.Equal(t, "omnik2000tl2", *inverter.Model)
	require.NotNil(t, inverter.Firmware)
	assert.Equal(t, "V1.40Build52927", *inverter.Firmware)
	require.NotNil(t, inverter.SolarRatedPower)
	assert.Equal(t, 2000, *inverter.SolarRatedPower)
	require.NotNil(t, inverter.SolarCurrentPower)
	assert.Equal(t, 1225, *inverter.SolarCurrentPower)
	require.NotNil(t, inverter.SolarEnergyToday)
	assert.InDelta(t, 8.16, *inverter.SolarEnergyToday, 0.0001)
	require.NotNil(t, inverter.SolarEnergyTotal)
	assert.InDelta(t, 595.74, *inverter.SolarEnergyTotal, 0.0001)
}

func TestJSDeviceWebData(t *testing.T) {
	payload := loadFixture(t, "status_webdata.js")

	device, err := JSDevice(payload)
	require.NoError(t, err)

	require.NotNil(t, device.SignalQuality)
	assert.Equal(t, 39, *device.SignalQuality)
	require.NotNil(t, device.Firmware)
	assert.Equal(t, "H4.01.38Y1.0.09W1.0.08", *device.Firmware)
	assert.Nil(t, device.IPAddress, "JS sources do not report an IP address")
}

func TestJSInverterDeviceArray(t *testing.T) {
	payload := loadFixture(t, "status_devicearray.js")

	inverter, err := JSInverter(payload)
	require.NoError(t, err)

	require.NotNil(t, inverter.SerialNumber)
	assert.Equal(t, "AANN3020", *inverter.SerialNumber)
	require.NotNil(t, inverter.Model)
	assert.Equal(t, "Omnik3000tl", *inverter.Model)
	require.NotNil(t, inverter.SolarCurrentPower)
	assert.Equal(t, 1313, *inverter.SolarCurrentPower)
	require.NotNil(t, inverter.SolarEnergyToday)
	assert.InDelta(t, 6.85, *inverter.SolarEnergyToday, 0.0001)
	require.NotNil(t, inverter.SolarEnergyTotal)
	assert.InDelta(t, 89.01, *inverter.SolarEnergyTotal, 0.0001)
}

func TestJSInverterEnergyColumnsShareHundredthsScale(t *testing.T) {
	// Both energy columns report integer hundredths of a kWh.
	payload := `webData="NLDN012345CS4321,V1.25Build23261,V1.40Build52927,omnik2000tl2,2000,1225,816,105319,,1,";`

	inverter, err := JSInverter(payload)
	require.NoError(t, err)

	require.NotNil(t, inverter.SolarEnergyToday)
	assert.InDelta(t, 8.16, *inverter.SolarEnergyToday, 0.0001)
	require.NotNil(t, inverter.SolarEnergyTotal)
	assert.InDelta(t, 1053.19, *inverter.SolarEnergyTotal, 0.0001)
}

func TestJSInverterPackedFirstColumn(t *testing.T) {
	payload := loadFixture(t, "status_devicearray_sofar.js")

	inverter, err := JSInverter(payload)
	require.NoError(t, err)

	// The Sofar firmware concatenates serial and model into the first
	// column and leaves the model column empty.
	require.NotNil(t, inverter.SerialNumber)
	assert.Equal(t, "SF4ES002T599F702", *inverter.SerialNumber)
	require.NotNil(t, inverter.Model)
	assert.Equal(t, "Sofar2200G", *inverter.Model)
	require.NotNil(t, inverter.SolarRatedPower)
	assert.Equal(t, 1500, *inverter.SolarRatedPower)
	require.NotNil(t, inverter.SolarCurrentPower)
	assert.Equal(t, 850, *inverter.SolarCurrentPower)
}

func TestJSInverterUnknownPayload(t *testing.T) {
	payload := loadFixture(t, "status_wrong.js")

	_, err := JSInverter(payload)
	require.Error(t, err)

	var decodeErr *domain.DecodeError
	assert.True(t, errors.As(err, &decodeErr), "expected a DecodeError, got %T", err)
}

func TestJSDeviceUnknownPayload(t *testing.T) {
	payload := loadFixture(t, "status_wrong.js")

	_, err := JSDevice(payload)
	require.Error(t, err)

	var decodeErr *domain.DecodeError
	assert.True(t, errors.As(err, &decodeErr), "expected a DecodeError, got %T", err)
}
