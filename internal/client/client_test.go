package client

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resident-x/go-omnik/internal/domain"
	"github.com/resident-x/go-omnik/internal/fields"
	"github.com/resident-x/go-omnik/internal/protocol"
)

func TestNewValidation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err, "host is required")

	_, err = New(Options{Host: "example.com", SourceType: "carrier-pigeon"})
	assert.Error(t, err, "unknown source type must be rejected")

	_, err = New(Options{Host: "example.com", SourceType: domain.SourceHTML})
	assert.Error(t, err, "html source without credentials must be rejected")

	_, err = New(Options{Host: "example.com", SourceType: domain.SourceHTML, Username: "klaas"})
	assert.Error(t, err, "html source with only a username must be rejected")

	_, err = New(Options{Host: "example.com", SourceType: domain.SourceTCP})
	assert.Error(t, err, "tcp source without a serial number must be rejected")

	client, err := New(Options{Host: "example.com"})
	require.NoError(t, err, "javascript is the default source")
	defer client.Close()
}

func TestClientJavaScriptSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/js/status.js", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-javascript")
		_, _ = w.Write([]byte(
			`var version = "H4.01.38Y1.0.09W1.0.08";` + "\n" +
				`var webData="NLDN012345CS4321,V1.25Build23261,V1.40Build52927,omnik2000tl2,2000,1225,816,59574,,1,";` + "\n" +
				`var m2mRssi = "39%";` + "\n"))
	}))
	defer server.Close()

	client, err := New(Options{Host: hostOf(t, server)})
	require.NoError(t, err)
	defer client.Close()

	inverter, err := client.Inverter(context.Background())
	require.NoError(t, err)
	require.NotNil(t, inverter.SerialNumber)
	assert.Equal(t, "NLDN012345CS4321", *inverter.SerialNumber)
	require.NotNil(t, inverter.SolarCurrentPower)
	assert.Equal(t, 1225, *inverter.SolarCurrentPower)

	device, err := client.Device(context.Background())
	require.NoError(t, err)
	require.NotNil(t, device.SignalQuality)
	assert.Equal(t, 39, *device.SignalQuality)
}

func TestClientJSONSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status.json", r.URL.Path)
		assert.Equal(t, "inv_query", r.URL.Query().Get("CMD"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sn": "12345678", "g1": "2000", "h1": 1225, "ip": "192.168.0.106"}`))
	}))
	defer server.Close()

	client, err := New(Options{Host: hostOf(t, server), SourceType: domain.SourceJSON})
	require.NoError(t, err)
	defer client.Close()

	inverter, err := client.Inverter(context.Background())
	require.NoError(t, err)
	require.NotNil(t, inverter.SerialNumber)
	assert.Equal(t, "12345678", *inverter.SerialNumber)
	require.NotNil(t, inverter.SolarRatedPower)
	assert.Equal(t, 2000, *inverter.SolarRatedPower)

	device, err := client.Device(context.Background())
	require.NoError(t, err)
	require.NotNil(t, device.IPAddress)
	assert.Equal(t, "192.168.0.106", *device.IPAddress)
}

func TestClientHTMLSource(t *testing.T) {
	doc := `<html><head><title>Bosswerk MI600</title><script>
var webdata_sn = "1234567890";
var webdata_msvn = "MW3_16U_5406_1.471";
var webdata_pv_type = "MI600";
var webdata_rate_p = "600";
var webdata_now_p = "231";
var webdata_today_e = "1.2";
var webdata_total_e = "58.0";
var cover_ver = "MW3_16U_5406_1.47";
var cover_sta_ip = "192.168.0.10";
</script></head></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "html source must authenticate")
		assert.Equal(t, "klaas", user)
		assert.Equal(t, "supercool", pass)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(doc))
	}))
	defer server.Close()

	client, err := New(Options{
		Host:       hostOf(t, server),
		SourceType: domain.SourceHTML,
		Username:   "klaas",
		Password:   "supercool",
	})
	require.NoError(t, err)
	defer client.Close()

	inverter, err := client.Inverter(context.Background())
	require.NoError(t, err)
	require.NotNil(t, inverter.Model)
	assert.Equal(t, "MI600", *inverter.Model)

	device, err := client.Device(context.Background())
	require.NoError(t, err)
	require.NotNil(t, device.IPAddress)
	assert.Equal(t, "192.168.0.10", *device.IPAddress)
}

func TestClientTCPSource(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	reply := protocol.EncodeInformationReply(602606402, protocol.ReplyTelemetry{
		SerialNumber:   "NLDN012345CS4321",
		Temperature:    fields.FloatPtr(23.5),
		DCInputVoltage: []float64{187.5},
		EnergyToday:    8.16,
		EnergyTotal:    5957.4,
		HoursTotal:     12345,
		Active:         fields.BoolPtr(true),
	})

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				buf := make([]byte, 64)
				if _, err := conn.Read(buf); err != nil {
					return
				}
				_, _ = conn.Write(reply)
			}(conn)
		}
	}()

	host, portStr, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := New(Options{
		Host:         host,
		SourceType:   domain.SourceTCP,
		TCPPort:      port,
		SerialNumber: 602606402,
		Timeout:      2 * time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	inverter, err := client.Inverter(context.Background())
	require.NoError(t, err)
	require.NotNil(t, inverter.SerialNumber)
	assert.Equal(t, "NLDN012345CS4321", *inverter.SerialNumber)
	require.NotNil(t, inverter.SolarHoursTotal)
	assert.Equal(t, 12345, *inverter.SolarHoursTotal)

	// The status port carries no communication module record.
	device, err := client.Device(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Device{}, device)
}

func hostOf(t *testing.T, server *httptest.Server) string {
	t.Helper()
	return strings.TrimPrefix(server.URL, "http://")
}
