package reasons

// errorStateBits lists hrPrinterDetectedErrorState bits in order. Bit 0 is
// the most significant bit of the first octet.
var errorStateBits = []string{
	// First octet.
	"media-low",      // lowPaper
	"media-empty",    // noPaper
	"toner-low",      // lowToner
	"toner-empty",    // noToner
	"door-open",      // doorOpen
	"media-jam",      // jammed
	"offline",        // offline
	"service-needed", // serviceRequested

	// Second octet.
	"input-tray-missing",      // inputTrayMissing
	"output-tray-missing",     // outputTrayMissing
	"marker-supply-missing",   // markerSupplyMissing
	"output-area-almost-full", // outputNearFull
	"output-area-full",        // outputFull
	"media-empty",             // inputTrayEmpty
	"maintenance-overdue",     // overduePreventMaint
}

// DecodeErrorState turns an hrPrinterDetectedErrorState octet string into
// reason keywords, in bit order without duplicates. Bits beyond the known
// ones are ignored.
func DecodeErrorState(state []byte) []string {
	var (
		out  []string
		seen = make(map[string]bool)
	)
	for bit, keyword := range errorStateBits {
		octet := bit / 8
		if octet >= len(state) {
			break
		}
		if state[octet]&(0x80>>(bit%8)) == 0 || seen[keyword] {
			continue
		}
		seen[keyword] = true
		out = append(out, keyword)
	}
	return out
}
