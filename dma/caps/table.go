package caps

import "github.com/joshuapare/nicdma/internal/format"

// ISA PIO parts. The CPU moves every byte, so the DMA fields only matter for
// bounce buffers.
var (
	caps3C509B = Capabilities{
		Name:                "3C509B",
		AddressWidthBits:    format.AddressWidthISA,
		MaxSGEntries:        1,
		Boundary:            format.Boundary64K,
		Alignment:           4,
		DescriptorAlignment: 4,
		RxCopyBreak:         256,
		TxCopyBreak:         256,
		CacheCoherent:       true,
		MaxSegmentSize:      format.MaxFrame,
	}

	caps3C589 = Capabilities{
		Name:                "3C589",
		AddressWidthBits:    format.AddressWidthISA,
		MaxSGEntries:        1,
		Boundary:            format.Boundary64K,
		Alignment:           4,
		DescriptorAlignment: 4,
		RxCopyBreak:         256,
		TxCopyBreak:         256,
		CacheCoherent:       true,
		MaxSegmentSize:      format.MaxFrame,
	}
)

// ISA bus master. Needs locked, boundary-safe buffers below 16 MiB.
var caps3C515TX = Capabilities{
	Name:                "3C515-TX",
	AddressWidthBits:    format.AddressWidthISA,
	MaxSGEntries:        1,
	Boundary:            format.Boundary64K,
	Alignment:           16,
	DescriptorAlignment: 16,
	NeedsAddressLocking: true,
	RxCopyBreak:         512,
	TxCopyBreak:         512,
	NoBoundaryCrossing:  true,
	MaxSegmentSize:      format.Boundary64K,
}

// PCI Vortex.
var (
	caps3C590 = Capabilities{
		Name:                "3C590",
		AddressWidthBits:    format.AddressWidthPCI,
		MaxSGEntries:        1,
		Boundary:            format.Boundary64K,
		Alignment:           16,
		DescriptorAlignment: 16,
		RxCopyBreak:         736,
		TxCopyBreak:         736,
		MaxSegmentSize:      format.Boundary64K,
	}

	caps3C595 = Capabilities{
		Name:                "3C595",
		AddressWidthBits:    format.AddressWidthPCI,
		MaxSGEntries:        1,
		Boundary:            format.Boundary64K,
		Alignment:           16,
		DescriptorAlignment: 16,
		RxCopyBreak:         1024,
		TxCopyBreak:         1024,
		MaxSegmentSize:      format.Boundary64K,
	}
)

// PCI Boomerang/Cyclone/Tornado with scatter-gather.
var (
	caps3C900TPO = Capabilities{
		Name:                "3C900-TPO",
		AddressWidthBits:    format.AddressWidthPCI,
		MaxSGEntries:        4,
		Boundary:            format.Boundary64K,
		Alignment:           16,
		DescriptorAlignment: 16,
		RxCopyBreak:         1024,
		TxCopyBreak:         1024,
		SupportsSG:          true,
		MaxSegmentSize:      2 * format.Boundary64K,
	}

	caps3C905  = boomerang("3C905")
	caps3C905B = boomerang("3C905B")
	caps3C905C = boomerang("3C905C")
)

func boomerang(name string) Capabilities {
	return Capabilities{
		Name:                name,
		AddressWidthBits:    format.AddressWidthPCI,
		MaxSGEntries:        format.MaxSGEntries,
		Boundary:            format.Boundary64K,
		Alignment:           16,
		DescriptorAlignment: 16,
		RxCopyBreak:         format.MaxFrame,
		TxCopyBreak:         format.MaxFrame,
		SupportsSG:          true,
		MaxSegmentSize:      2 * format.Boundary64K,
	}
}

// registry is keyed by canonical name.
var registry = map[string]Capabilities{
	caps3C509B.Name:   caps3C509B,
	caps3C515TX.Name:  caps3C515TX,
	caps3C589.Name:    caps3C589,
	caps3C590.Name:    caps3C590,
	caps3C595.Name:    caps3C595,
	caps3C900TPO.Name: caps3C900TPO,
	caps3C905.Name:    caps3C905,
	caps3C905B.Name:   caps3C905B,
	caps3C905C.Name:   caps3C905C,
}

// aliases maps alternate spellings used by detection code to canonical names.
var aliases = map[string]string{
	"3C515TX": "3C515-TX",
	"3C900":   "3C900-TPO",
}
