// Package metrics exposes the latest registry state as Prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/resident-x/go-omnik/internal/domain"
)

// Collector implements prometheus.Collector over the status registry. It
// reads the snapshot collected by the poller and never talks to an inverter
// during a scrape.
type Collector struct {
	registry *domain.StatusRegistry

	currentPower *prometheus.Desc
	ratedPower   *prometheus.Desc
	energyToday  *prometheus.Desc
	energyTotal  *prometheus.Desc
	hoursTotal   *prometheus.Desc
	temperature  *prometheus.Desc
	active       *prometheus.Desc
	dcVoltage    *prometheus.Desc
	dcCurrent    *prometheus.Desc
	acVoltage    *prometheus.Desc
	acCurrent    *prometheus.Desc
	acFrequency  *prometheus.Desc
	acPower      *prometheus.Desc
	signal       *prometheus.Desc
	info         *prometheus.Desc
	reachable    *prometheus.Desc
	lastContact  *prometheus.Desc
}

// NewCollector creates a collector over the given registry.
func NewCollector(registry *domain.StatusRegistry) *Collector {
	inverterLabels := []string{"inverter"}
	seriesLabels := []string{"inverter", "index"}

	return &Collector{
		registry: registry,
		currentPower: prometheus.NewDesc(
			"omnik_solar_current_power_watts",
			"Current solar production in watts",
			inverterLabels, nil,
		),
		ratedPower: prometheus.NewDesc(
			"omnik_solar_rated_power_watts",
			"Rated maximum output in watts",
			inverterLabels, nil,
		),
		energyToday: prometheus.NewDesc(
			"omnik_solar_energy_today_kwh",
			"Energy produced today in kilowatt-hours",
			inverterLabels, nil,
		),
		energyTotal: prometheus.NewDesc(
			"omnik_solar_energy_total_kwh",
			"Lifetime energy production in kilowatt-hours",
			inverterLabels, nil,
		),
		hoursTotal: prometheus.NewDesc(
			"omnik_solar_hours_total",
			"Lifetime operating hours",
			inverterLabels, nil,
		),
		temperature: prometheus.NewDesc(
			"omnik_temperature_celsius",
			"Inverter temperature in degrees Celsius",
			inverterLabels, nil,
		),
		active: prometheus.NewDesc(
			"omnik_inverter_active",
			"Inverter operational state (1=active, 0=inactive)",
			inverterLabels, nil,
		),
		dcVoltage: prometheus.NewDesc(
			"omnik_dc_input_voltage_volts",
			"DC input voltage per string in volts",
			seriesLabels, nil,
		),
		dcCurrent: prometheus.NewDesc(
			"omnik_dc_input_current_amperes",
			"DC input current per string in amperes",
			seriesLabels, nil,
		),
		acVoltage: prometheus.NewDesc(
			"omnik_ac_output_voltage_volts",
			"AC output voltage per phase in volts",
			seriesLabels, nil,
		),
		acCurrent: prometheus.NewDesc(
			"omnik_ac_output_current_amperes",
			"AC output current per phase in amperes",
			seriesLabels, nil,
		),
		acFrequency: prometheus.NewDesc(
			"omnik_ac_output_frequency_hertz",
			"AC output frequency per phase in hertz",
			seriesLabels, nil,
		),
		acPower: prometheus.NewDesc(
			"omnik_ac_output_power_watts",
			"AC output power per phase in watts",
			seriesLabels, nil,
		),
		signal: prometheus.NewDesc(
			"omnik_signal_quality_percent",
			"Wi-Fi signal quality reported by the datalogger in percent",
			inverterLabels, nil,
		),
		info: prometheus.NewDesc(
			"omnik_inverter_info",
			"Inverter identity information",
			[]string{"inverter", "host", "source", "serial_number", "model", "firmware"},
			nil,
		),
		reachable: prometheus.NewDesc(
			"omnik_inverter_reachable",
			"Whether the last poll of the inverter succeeded",
			inverterLabels, nil,
		),
		lastContact: prometheus.NewDesc(
			"omnik_last_contact_timestamp_seconds",
			"Unix timestamp of the last successful poll",
			inverterLabels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.currentPower
	ch <- c.ratedPower
	ch <- c.energyToday
	ch <- c.energyTotal
	ch <- c.hoursTotal
	ch <- c.temperature
	ch <- c.active
	ch <- c.dcVoltage
	ch <- c.dcCurrent
	ch <- c.acVoltage
	ch <- c.acCurrent
	ch <- c.acFrequency
	ch <- c.acPower
	ch <- c.signal
	ch <- c.info
	ch <- c.reachable
	ch <- c.lastContact
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, status := range c.registry.All() {
		c.collectInverter(status, ch)
	}
}

func (c *Collector) collectInverter(status domain.InverterStatus, ch chan<- prometheus.Metric) {
	reachable := 0.0
	if status.LastError == "" && !status.LastContact.IsZero() {
		reachable = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.reachable, prometheus.GaugeValue, reachable, status.Name)

	if !status.LastContact.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastContact, prometheus.GaugeValue,
			float64(status.LastContact.Unix()), status.Name)
	}

	if status.Inverter == nil {
		return
	}
	inv := status.Inverter

	c.gaugeInt(ch, c.currentPower, inv.SolarCurrentPower, status.Name)
	c.gaugeInt(ch, c.ratedPower, inv.SolarRatedPower, status.Name)
	c.gaugeFloat(ch, c.energyToday, inv.SolarEnergyToday, status.Name)
	c.gaugeFloat(ch, c.energyTotal, inv.SolarEnergyTotal, status.Name)
	c.gaugeInt(ch, c.hoursTotal, inv.SolarHoursTotal, status.Name)
	c.gaugeFloat(ch, c.temperature, inv.Temperature, status.Name)

	if inv.InverterActive != nil {
		active := 0.0
		if *inv.InverterActive {
			active = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, active, status.Name)
	}

	c.series(ch, c.dcVoltage, inv.DCInputVoltage, status.Name)
	c.series(ch, c.dcCurrent, inv.DCInputCurrent, status.Name)
	c.series(ch, c.acVoltage, inv.ACOutputVoltage, status.Name)
	c.series(ch, c.acCurrent, inv.ACOutputCurrent, status.Name)
	c.series(ch, c.acFrequency, inv.ACOutputFrequency, status.Name)

	for i, power := range inv.ACOutputPower {
		ch <- prometheus.MustNewConstMetric(c.acPower, prometheus.GaugeValue,
			float64(power), status.Name, strconv.Itoa(i+1))
	}

	if status.Device != nil && status.Device.SignalQuality != nil {
		ch <- prometheus.MustNewConstMetric(c.signal, prometheus.GaugeValue,
			float64(*status.Device.SignalQuality), status.Name)
	}

	infoLabels := []string{
		status.Name,
		status.Host,
		string(status.SourceType),
		stringOrEmpty(inv.SerialNumber),
		stringOrEmpty(inv.Model),
		stringOrEmpty(inv.Firmware),
	}
	ch <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1, infoLabels...)
}

func (c *Collector) gaugeInt(ch chan<- prometheus.Metric, desc *prometheus.Desc, value *int, labels ...string) {
	if value == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(*value), labels...)
}

func (c *Collector) gaugeFloat(ch chan<- prometheus.Metric, desc *prometheus.Desc, value *float64, labels ...string) {
	if value == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, *value, labels...)
}

func (c *Collector) series(ch chan<- prometheus.Metric, desc *prometheus.Desc, values []float64, name string) {
	for i, v := range values {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, name, strconv.Itoa(i+1))
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
