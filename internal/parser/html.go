package parser

import (
	"regexp"
	"strings"

	"github.com/resident-x/go-omnik/internal/domain"
	"github.com/resident-x/go-omnik/internal/fields"
)

// HTMLLayout names one of the known status.html sub-layouts. Several
// unrelated firmware families emit HTML, so the document is fingerprinted
// before a row-to-field mapping is chosen.
type HTMLLayout string

const (
	LayoutOmnik2500 HTMLLayout = "omnik2500tl"
	LayoutSolis     HTMLLayout = "solis"
	LayoutBosswerk  HTMLLayout = "bosswerk"
	LayoutSofar     HTMLLayout = "sofar"
	LayoutHuayu     HTMLLayout = "huayu"
	LayoutDeye      HTMLLayout = "deye"
)

// htmlFingerprint pairs a layout with its structural predicate.
type htmlFingerprint struct {
	layout  HTMLLayout
	matches func(doc string) bool
}

// htmlFingerprints is the detection order contract: checks run top to bottom
// and the first match wins. Table-based layouts are checked before the
// script-variable family, and brand-specific markers before the generic
// webdata fallback, so that a more specific page is never claimed by a
// broader fingerprint.
var htmlFingerprints = []htmlFingerprint{
	{LayoutOmnik2500, func(doc string) bool {
		return strings.Contains(doc, "Omnik 2500") || strings.Contains(doc, "omnik2500")
	}},
	{LayoutSolis, func(doc string) bool {
		return strings.Contains(doc, "Ginlong") || strings.Contains(doc, "Solis")
	}},
	{LayoutBosswerk, func(doc string) bool {
		return hasScriptVars(doc) && strings.Contains(doc, "Bosswerk")
	}},
	{LayoutSofar, func(doc string) bool {
		return hasScriptVars(doc) && (strings.Contains(doc, "SOFAR") || strings.Contains(doc, "Sofar"))
	}},
	{LayoutHuayu, func(doc string) bool {
		return hasScriptVars(doc) && (strings.Contains(doc, "Huayu") || strings.Contains(doc, "HY-"))
	}},
	{LayoutDeye, hasScriptVars},
}

func hasScriptVars(doc string) bool {
	return strings.Contains(doc, "webdata_sn")
}

// DetectHTMLLayout inspects document markers and decides which sub-layout
// applies. A document matching no fingerprint yields a DecodeError: the
// device was reachable but the response shape is unknown.
func DetectHTMLLayout(doc string) (HTMLLayout, error) {
	for _, fp := range htmlFingerprints {
		if fp.matches(doc) {
			return fp.layout, nil
		}
	}
	return "", domain.NewDecodeError("HTML document matches no known model fingerprint")
}

// scriptVarMap maps record fields to the script global holding each value
// for one firmware family. An empty name means the family does not report
// the field.
type scriptVarMap struct {
	serial, firmware, firmwareSlave, model string
	ratedPower, nowPower                   string
	todayEnergy, totalEnergy, alarm        string
	moduleFirmware, ipAddress              string
}

var scriptVarMaps = map[HTMLLayout]scriptVarMap{
	LayoutBosswerk: {
		serial: "webdata_sn", firmware: "webdata_msvn", firmwareSlave: "webdata_ssvn",
		model: "webdata_pv_type", ratedPower: "webdata_rate_p", nowPower: "webdata_now_p",
		todayEnergy: "webdata_today_e", totalEnergy: "webdata_total_e", alarm: "webdata_alarm",
		moduleFirmware: "cover_ver", ipAddress: "cover_sta_ip",
	},
	LayoutSofar: {
		serial: "webdata_sn", firmware: "webdata_msvn", firmwareSlave: "webdata_ssvn",
		model: "webdata_pv_type", ratedPower: "webdata_rate_p", nowPower: "webdata_now_p",
		todayEnergy: "webdata_today_e", totalEnergy: "webdata_total_e", alarm: "webdata_alarm",
		moduleFirmware: "cover_ver", ipAddress: "cover_sta_ip",
	},
	// Huayu firmware publishes no nameplate rating variable.
	LayoutHuayu: {
		serial: "webdata_sn", firmware: "webdata_msvn", firmwareSlave: "webdata_ssvn",
		model: "webdata_pv_type", nowPower: "webdata_now_p",
		todayEnergy: "webdata_today_e", totalEnergy: "webdata_total_e", alarm: "webdata_alarm",
		moduleFirmware: "cover_ver", ipAddress: "cover_sta_ip",
	},
	LayoutDeye: {
		serial: "webdata_sn", firmware: "webdata_msvn", firmwareSlave: "webdata_ssvn",
		model: "webdata_pv_type", ratedPower: "webdata_rate_p", nowPower: "webdata_now_p",
		todayEnergy: "webdata_today_e", totalEnergy: "webdata_total_e", alarm: "webdata_alarm",
		moduleFirmware: "cover_ver", ipAddress: "cover_sta_ip",
	},
}

// tableLabelMap maps record fields to the row label preceding each value in
// the label/value table layouts.
type tableLabelMap struct {
	serial, firmware, firmwareSlave, model string
	ratedPower, nowPower                   string
	todayEnergy, totalEnergy, alarm        string
	moduleFirmware, ipAddress              string
}

var tableLabelMaps = map[HTMLLayout]tableLabelMap{
	LayoutOmnik2500: {
		serial: "Serial number", firmware: "Firmware version (main)",
		firmwareSlave: "Firmware version (slave)", model: "Inverter model",
		ratedPower: "Rated power", nowPower: "Current power",
		todayEnergy: "Yield today", totalEnergy: "Total yield", alarm: "Alarm information",
		moduleFirmware: "Module version", ipAddress: "IP address",
	},
	LayoutSolis: {
		serial: "Inverter SN", firmware: "Firmware version", model: "Inverter model",
		nowPower: "Current power", todayEnergy: "Yield today", totalEnergy: "Total yield",
		alarm: "Alarm", moduleFirmware: "Module version", ipAddress: "IP address",
	},
}

// tableValue extracts the value cell following a label cell. Missing labels
// degrade to the empty string so optional fields default per the coercion
// rules.
func tableValue(doc, label string) string {
	if label == "" {
		return ""
	}
	re := regexp.MustCompile(regexp.QuoteMeta(label) + `\s*:?\s*</td>\s*<td[^>]*>\s*([^<]*?)\s*</td>`)
	if m := re.FindStringSubmatch(doc); m != nil {
		return m[1]
	}
	return ""
}

var leadingNumberRe = regexp.MustCompile(`^-?\d+(?:\.\d+)?`)

// numericPrefix strips a trailing unit ("1225 W", "8.5 kWh") from a table
// cell, leaving the bare number for coercion.
func numericPrefix(raw string) string {
	return leadingNumberRe.FindString(strings.TrimSpace(raw))
}

// HTMLInverter runs model detection and parses production telemetry using
// the detected sub-layout's field mapping.
func HTMLInverter(doc string) (domain.Inverter, error) {
	layout, err := DetectHTMLLayout(doc)
	if err != nil {
		return domain.Inverter{}, err
	}
	return htmlInverterForLayout(doc, layout), nil
}

// HTMLDevice runs model detection and parses communication module status.
// HTML sources report firmware and IP address but no WiFi signal.
func HTMLDevice(doc string) (domain.Device, error) {
	layout, err := DetectHTMLLayout(doc)
	if err != nil {
		return domain.Device{}, err
	}
	return htmlDeviceForLayout(doc, layout), nil
}

func htmlInverterForLayout(doc string, layout HTMLLayout) domain.Inverter {
	if vars, ok := scriptVarMaps[layout]; ok {
		return domain.Inverter{
			SerialNumber:      fields.String(scriptVar(doc, vars.serial)),
			Model:             fields.String(scriptVar(doc, vars.model)),
			Firmware:          fields.String(scriptVar(doc, vars.firmware)),
			FirmwareSlave:     fields.String(scriptVar(doc, vars.firmwareSlave)),
			AlarmCode:         fields.String(scriptVar(doc, vars.alarm)),
			SolarRatedPower:   fields.Int(scriptVar(doc, vars.ratedPower)),
			SolarCurrentPower: fields.Int(scriptVar(doc, vars.nowPower)),
			SolarEnergyToday:  fields.Float(scriptVar(doc, vars.todayEnergy)),
			SolarEnergyTotal:  fields.Float(scriptVar(doc, vars.totalEnergy)),
		}
	}

	labels := tableLabelMaps[layout]
	return domain.Inverter{
		SerialNumber:      fields.String(tableValue(doc, labels.serial)),
		Model:             fields.String(tableValue(doc, labels.model)),
		Firmware:          fields.String(tableValue(doc, labels.firmware)),
		FirmwareSlave:     fields.String(tableValue(doc, labels.firmwareSlave)),
		AlarmCode:         fields.String(tableValue(doc, labels.alarm)),
		SolarRatedPower:   fields.Int(numericPrefix(tableValue(doc, labels.ratedPower))),
		SolarCurrentPower: fields.Int(numericPrefix(tableValue(doc, labels.nowPower))),
		SolarEnergyToday:  fields.Float(numericPrefix(tableValue(doc, labels.todayEnergy))),
		SolarEnergyTotal:  fields.Float(numericPrefix(tableValue(doc, labels.totalEnergy))),
	}
}

func htmlDeviceForLayout(doc string, layout HTMLLayout) domain.Device {
	if vars, ok := scriptVarMaps[layout]; ok {
		return domain.Device{
			Firmware:  fields.String(scriptVar(doc, vars.moduleFirmware)),
			IPAddress: fields.String(scriptVar(doc, vars.ipAddress)),
		}
	}

	labels := tableLabelMaps[layout]
	return domain.Device{
		Firmware:  fields.String(tableValue(doc, labels.moduleFirmware)),
		IPAddress: fields.String(tableValue(doc, labels.ipAddress)),
	}
}
