package caps

import "strings"

// Family groups devices by bus and DMA model.
type Family int

const (
	FamilyUnknown      Family = iota
	FamilyISA                 // 3C509, 3C589: programmed I/O on a 24-bit bus
	FamilyISABusMaster        // 3C515: ISA bus master, needs locked boundary-safe memory
	FamilyPCI                 // 3C59x, 3C90x: 32-bit PCI bus masters
)

func (f Family) String() string {
	switch f {
	case FamilyISA:
		return "ISA"
	case FamilyISABusMaster:
		return "ISA bus master"
	case FamilyPCI:
		return "PCI"
	default:
		return "unknown"
	}
}

// Legacy reports whether the family sits on the 24-bit ISA/PCMCIA bus.
func (f Family) Legacy() bool {
	return f == FamilyISA || f == FamilyISABusMaster
}

// FamilyOf classifies a device identifier by substring, the same way the
// detection code reports models ("3C509B", "3C589D", "3C905C-TX").
func FamilyOf(name string) Family {
	switch {
	case strings.Contains(name, "3C515"):
		return FamilyISABusMaster
	case strings.Contains(name, "3C509"), strings.Contains(name, "3C589"):
		return FamilyISA
	case strings.Contains(name, "3C59"), strings.Contains(name, "3C90"):
		return FamilyPCI
	default:
		return FamilyUnknown
	}
}
