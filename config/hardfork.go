package config

// Hardfork is a named height-activated change of the execution rules.
type Hardfork byte

// Known hardforks in activation order.
const (
	HFAspidochelone Hardfork = 1 << iota
	HFBasilisk
	HFCockatrice
	HFDomovoi
	HFEchidna

	// HFDefault is a special value meaning "enabled from the genesis".
	HFDefault Hardfork = 0
)

// Hardforks lists all known hardforks in activation order.
var Hardforks = []Hardfork{HFAspidochelone, HFBasilisk, HFCockatrice, HFDomovoi, HFEchidna}

var hardforkNames = map[Hardfork]string{
	HFAspidochelone: "Aspidochelone",
	HFBasilisk:      "Basilisk",
	HFCockatrice:    "Cockatrice",
	HFDomovoi:       "Domovoi",
	HFEchidna:       "Echidna",
}

// String implements fmt.Stringer.
func (h Hardfork) String() string {
	if h == HFDefault {
		return "Default"
	}
	if s, ok := hardforkNames[h]; ok {
		return s
	}
	return "Unknown"
}

// ParseHardfork returns hardfork by its name.
func ParseHardfork(s string) (Hardfork, bool) {
	for h, name := range hardforkNames {
		if name == s {
			return h, true
		}
	}
	return 0, false
}

// Cmp compares hardforks by activation order.
func (h Hardfork) Cmp(other Hardfork) int {
	switch {
	case h < other:
		return -1
	case h > other:
		return 1
	default:
		return 0
	}
}
