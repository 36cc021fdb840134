package mibnames

// smiRoots resolve MIB parents but are never rendered themselves, so that
// arbitrary OIDs under iso do not translate to "iso.x.y".
var smiRoots = map[string]string{
	"iso":          "1",
	"org":          "1.3",
	"dod":          "1.3.6",
	"internet":     "1.3.6.1",
	"directory":    "1.3.6.1.1",
	"mgmt":         "1.3.6.1.2",
	"experimental": "1.3.6.1.3",
	"private":      "1.3.6.1.4",
	"security":     "1.3.6.1.5",
	"snmpV2":       "1.3.6.1.6",
	"snmpModules":  "1.3.6.1.6.3",
}

// builtinNames cover the subtrees discovery and polling touch, so common
// output is readable without a MIB directory.
var builtinNames = []struct {
	name string
	oid  string
}{
	{"mib-2", "1.3.6.1.2.1"},
	{"enterprises", "1.3.6.1.4.1"},

	// SNMPv2-MIB system group.
	{"system", "1.3.6.1.2.1.1"},
	{"sysDescr", "1.3.6.1.2.1.1.1"},
	{"sysObjectID", "1.3.6.1.2.1.1.2"},
	{"sysUpTime", "1.3.6.1.2.1.1.3"},
	{"sysContact", "1.3.6.1.2.1.1.4"},
	{"sysName", "1.3.6.1.2.1.1.5"},
	{"sysLocation", "1.3.6.1.2.1.1.6"},
	{"sysServices", "1.3.6.1.2.1.1.7"},

	// HOST-RESOURCES-MIB.
	{"host", "1.3.6.1.2.1.25"},
	{"hrSystem", "1.3.6.1.2.1.25.1"},
	{"hrStorage", "1.3.6.1.2.1.25.2"},
	{"hrDevice", "1.3.6.1.2.1.25.3"},
	{"hrDeviceTypes", "1.3.6.1.2.1.25.3.1"},
	{"hrDeviceOther", "1.3.6.1.2.1.25.3.1.1"},
	{"hrDeviceUnknown", "1.3.6.1.2.1.25.3.1.2"},
	{"hrDeviceProcessor", "1.3.6.1.2.1.25.3.1.3"},
	{"hrDeviceNetwork", "1.3.6.1.2.1.25.3.1.4"},
	{"hrDevicePrinter", "1.3.6.1.2.1.25.3.1.5"},
	{"hrDeviceTable", "1.3.6.1.2.1.25.3.2"},
	{"hrDeviceEntry", "1.3.6.1.2.1.25.3.2.1"},
	{"hrDeviceIndex", "1.3.6.1.2.1.25.3.2.1.1"},
	{"hrDeviceType", "1.3.6.1.2.1.25.3.2.1.2"},
	{"hrDeviceDescr", "1.3.6.1.2.1.25.3.2.1.3"},
	{"hrDeviceID", "1.3.6.1.2.1.25.3.2.1.4"},
	{"hrDeviceStatus", "1.3.6.1.2.1.25.3.2.1.5"},
	{"hrDeviceErrors", "1.3.6.1.2.1.25.3.2.1.6"},
	{"hrPrinterTable", "1.3.6.1.2.1.25.3.5"},
	{"hrPrinterEntry", "1.3.6.1.2.1.25.3.5.1"},
	{"hrPrinterStatus", "1.3.6.1.2.1.25.3.5.1.1"},
	{"hrPrinterDetectedErrorState", "1.3.6.1.2.1.25.3.5.1.2"},

	// Printer-MIB.
	{"printmib", "1.3.6.1.2.1.43"},
	{"prtGeneral", "1.3.6.1.2.1.43.5"},
	{"prtGeneralTable", "1.3.6.1.2.1.43.5.1"},
	{"prtGeneralEntry", "1.3.6.1.2.1.43.5.1.1"},
	{"prtGeneralConfigChanges", "1.3.6.1.2.1.43.5.1.1.1"},
	{"prtGeneralCurrentLocalization", "1.3.6.1.2.1.43.5.1.1.2"},
	{"prtGeneralReset", "1.3.6.1.2.1.43.5.1.1.3"},
	{"prtGeneralPrinterName", "1.3.6.1.2.1.43.5.1.1.16"},
	{"prtGeneralSerialNumber", "1.3.6.1.2.1.43.5.1.1.17"},
	{"prtCover", "1.3.6.1.2.1.43.6"},
	{"prtCoverTable", "1.3.6.1.2.1.43.6.1"},
	{"prtCoverEntry", "1.3.6.1.2.1.43.6.1.1"},
	{"prtCoverIndex", "1.3.6.1.2.1.43.6.1.1.1"},
	{"prtCoverDescription", "1.3.6.1.2.1.43.6.1.1.2"},
	{"prtCoverStatus", "1.3.6.1.2.1.43.6.1.1.3"},
	{"prtInput", "1.3.6.1.2.1.43.8"},
	{"prtInputTable", "1.3.6.1.2.1.43.8.2"},
	{"prtInputEntry", "1.3.6.1.2.1.43.8.2.1"},
	{"prtInputIndex", "1.3.6.1.2.1.43.8.2.1.1"},
	{"prtInputType", "1.3.6.1.2.1.43.8.2.1.2"},
	{"prtInputCapacityUnit", "1.3.6.1.2.1.43.8.2.1.8"},
	{"prtInputMaxCapacity", "1.3.6.1.2.1.43.8.2.1.9"},
	{"prtInputCurrentLevel", "1.3.6.1.2.1.43.8.2.1.10"},
	{"prtInputStatus", "1.3.6.1.2.1.43.8.2.1.11"},
	{"prtInputMediaName", "1.3.6.1.2.1.43.8.2.1.12"},
	{"prtMarker", "1.3.6.1.2.1.43.10"},
	{"prtMarkerTable", "1.3.6.1.2.1.43.10.2"},
	{"prtMarkerEntry", "1.3.6.1.2.1.43.10.2.1"},
	{"prtMarkerIndex", "1.3.6.1.2.1.43.10.2.1.1"},
	{"prtMarkerMarkTech", "1.3.6.1.2.1.43.10.2.1.2"},
	{"prtMarkerCounterUnit", "1.3.6.1.2.1.43.10.2.1.3"},
	{"prtMarkerLifeCount", "1.3.6.1.2.1.43.10.2.1.4"},
	{"prtMarkerSupplies", "1.3.6.1.2.1.43.11"},
	{"prtMarkerSuppliesTable", "1.3.6.1.2.1.43.11.1"},
	{"prtMarkerSuppliesEntry", "1.3.6.1.2.1.43.11.1.1"},
	{"prtMarkerSuppliesIndex", "1.3.6.1.2.1.43.11.1.1.1"},
	{"prtMarkerSuppliesMarkerIndex", "1.3.6.1.2.1.43.11.1.1.2"},
	{"prtMarkerSuppliesColorantIndex", "1.3.6.1.2.1.43.11.1.1.3"},
	{"prtMarkerSuppliesClass", "1.3.6.1.2.1.43.11.1.1.4"},
	{"prtMarkerSuppliesType", "1.3.6.1.2.1.43.11.1.1.5"},
	{"prtMarkerSuppliesDescription", "1.3.6.1.2.1.43.11.1.1.6"},
	{"prtMarkerSuppliesSupplyUnit", "1.3.6.1.2.1.43.11.1.1.7"},
	{"prtMarkerSuppliesMaxCapacity", "1.3.6.1.2.1.43.11.1.1.8"},
	{"prtMarkerSuppliesLevel", "1.3.6.1.2.1.43.11.1.1.9"},
	{"prtMarkerColorant", "1.3.6.1.2.1.43.12"},
	{"prtMarkerColorantTable", "1.3.6.1.2.1.43.12.1"},
	{"prtMarkerColorantEntry", "1.3.6.1.2.1.43.12.1.1"},
	{"prtMarkerColorantIndex", "1.3.6.1.2.1.43.12.1.1.1"},
	{"prtMarkerColorantMarkerIndex", "1.3.6.1.2.1.43.12.1.1.2"},
	{"prtMarkerColorantRole", "1.3.6.1.2.1.43.12.1.1.3"},
	{"prtMarkerColorantValue", "1.3.6.1.2.1.43.12.1.1.4"},
	{"prtConsoleDisplayBuffer", "1.3.6.1.2.1.43.16.5"},
	{"prtConsoleDisplayBufferTable", "1.3.6.1.2.1.43.16.5.1"},
	{"prtConsoleDisplayBufferEntry", "1.3.6.1.2.1.43.16.5.1.1"},
	{"prtConsoleDisplayBufferText", "1.3.6.1.2.1.43.16.5.1.1.2"},
	{"prtAlert", "1.3.6.1.2.1.43.18"},
	{"prtAlertTable", "1.3.6.1.2.1.43.18.1"},
	{"prtAlertEntry", "1.3.6.1.2.1.43.18.1.1"},
	{"prtAlertIndex", "1.3.6.1.2.1.43.18.1.1.1"},
	{"prtAlertSeverityLevel", "1.3.6.1.2.1.43.18.1.1.2"},
	{"prtAlertTrainingLevel", "1.3.6.1.2.1.43.18.1.1.3"},
	{"prtAlertGroup", "1.3.6.1.2.1.43.18.1.1.4"},
	{"prtAlertGroupIndex", "1.3.6.1.2.1.43.18.1.1.5"},
	{"prtAlertLocation", "1.3.6.1.2.1.43.18.1.1.6"},
	{"prtAlertCode", "1.3.6.1.2.1.43.18.1.1.7"},
	{"prtAlertDescription", "1.3.6.1.2.1.43.18.1.1.8"},
	{"prtAlertTime", "1.3.6.1.2.1.43.18.1.1.9"},

	// SNMPv2 generic traps.
	{"snmpTraps", "1.3.6.1.6.3.1.1.5"},
	{"coldStart", "1.3.6.1.6.3.1.1.5.1"},
	{"warmStart", "1.3.6.1.6.3.1.1.5.2"},
	{"linkDown", "1.3.6.1.6.3.1.1.5.3"},
	{"linkUp", "1.3.6.1.6.3.1.1.5.4"},
	{"authenticationFailure", "1.3.6.1.6.3.1.1.5.5"},
}
