package caps

import (
	"github.com/joshuapare/nicdma/dma/diag"
	"github.com/joshuapare/nicdma/internal/format"
)

// Validate checks c against the field ranges and the cross-field rules for
// its device family. name is the key c was looked up under; aliases are
// resolved before the identity check. The returned
// report fails (OK() == false) iff it holds at least one ERROR finding.
// Validate has no side effects.
func Validate(c Capabilities, name string) *diag.Report {
	r := diag.NewReport(name)
	if name == "" {
		r.Addf(diag.SevError, diag.CatIdentity, "Name", "missing device name")
		return r
	}

	checkRanges(r, c)
	checkFamily(r, c, name)
	checkScatterGather(r, c)

	if c.NoBoundaryCrossing && c.AddressWidthBits != format.AddressWidthISA {
		r.Addf(diag.SevWarning, diag.CatConsistency, "NoBoundaryCrossing",
			"boundary restriction set on a non-ISA device (address width %d)", c.AddressWidthBits)
	}
	if c.CacheCoherent && c.NeedsAddressLocking {
		r.Addf(diag.SevInfo, diag.CatConsistency, "CacheCoherent",
			"device claims cache coherence but needs address locking")
	}
	key := name
	if canon, ok := Canonical(name); ok {
		key = canon
	}
	if c.Name != key {
		r.Addf(diag.SevError, diag.CatIdentity, "Name", "descriptor name %q does not match key %q", c.Name, key)
	}
	return r
}

func checkRanges(r *diag.Report, c Capabilities) {
	if c.AddressWidthBits != format.AddressWidthISA && c.AddressWidthBits != format.AddressWidthPCI {
		r.Addf(diag.SevError, diag.CatRange, "AddressWidthBits",
			"invalid address width %d (must be %d or %d)", c.AddressWidthBits, format.AddressWidthISA, format.AddressWidthPCI)
	}
	if c.MaxSGEntries < 1 || c.MaxSGEntries > format.MaxSGEntries {
		r.Addf(diag.SevError, diag.CatRange, "MaxSGEntries",
			"invalid scatter-gather count %d (must be 1-%d)", c.MaxSGEntries, format.MaxSGEntries)
	}
	if !format.IsPowerOfTwo(c.Boundary) {
		r.Addf(diag.SevError, diag.CatRange, "Boundary", "invalid boundary %d (must be a power of two)", c.Boundary)
	}
	if !format.IsPowerOfTwo(c.Alignment) || c.Alignment > format.MaxAlignment {
		r.Addf(diag.SevError, diag.CatRange, "Alignment",
			"invalid alignment %d (must be a power of two, 1-%d)", c.Alignment, format.MaxAlignment)
	}
	if !format.IsPowerOfTwo(c.DescriptorAlignment) {
		r.Addf(diag.SevError, diag.CatRange, "DescriptorAlignment",
			"invalid descriptor alignment %d (must be a power of two)", c.DescriptorAlignment)
	}
	if c.RxCopyBreak < 0 || c.TxCopyBreak < 0 || c.RxCopyBreak > format.MaxCopyBreak || c.TxCopyBreak > format.MaxCopyBreak {
		r.Addf(diag.SevError, diag.CatRange, "CopyBreak",
			"copy-break out of range (rx=%d, tx=%d, max=%d)", c.RxCopyBreak, c.TxCopyBreak, format.MaxCopyBreak)
	}
	if c.MaxSegmentSize == 0 || c.MaxSegmentSize > format.MaxSegmentSize {
		r.Addf(diag.SevError, diag.CatRange, "MaxSegmentSize",
			"invalid max segment size %d (must be 1-%d)", c.MaxSegmentSize, format.MaxSegmentSize)
	}
}

func checkFamily(r *diag.Report, c Capabilities, name string) {
	fam := FamilyOf(name)
	switch {
	case fam.Legacy():
		if c.AddressWidthBits != format.AddressWidthISA {
			r.Addf(diag.SevWarning, diag.CatConsistency, "AddressWidthBits",
				"%s device with %d-bit addressing", fam, c.AddressWidthBits)
		}
		if fam == FamilyISABusMaster {
			if !c.NeedsAddressLocking {
				r.Addf(diag.SevError, diag.CatConsistency, "NeedsAddressLocking",
					"ISA bus master must lock its buffers")
			}
			if !c.NoBoundaryCrossing {
				r.Addf(diag.SevError, diag.CatConsistency, "NoBoundaryCrossing",
					"ISA bus master must not cross %d-byte boundaries", format.Boundary64K)
			}
		} else if c.NoBoundaryCrossing {
			r.Addf(diag.SevWarning, diag.CatConsistency, "NoBoundaryCrossing", "PIO device has boundary restriction set")
		}
	case fam == FamilyPCI:
		if c.AddressWidthBits != format.AddressWidthPCI {
			r.Addf(diag.SevWarning, diag.CatConsistency, "AddressWidthBits",
				"PCI device with %d-bit addressing", c.AddressWidthBits)
		}
		if c.NeedsAddressLocking {
			r.Addf(diag.SevWarning, diag.CatConsistency, "NeedsAddressLocking",
				"PCI device should not need address locking")
		}
	}
}

func checkScatterGather(r *diag.Report, c Capabilities) {
	switch {
	case c.SupportsSG && c.MaxSGEntries <= 1:
		r.Addf(diag.SevError, diag.CatConsistency, "SupportsSG",
			"scatter-gather supported but max entries is %d", c.MaxSGEntries)
	case !c.SupportsSG && c.MaxSGEntries > 1:
		r.Addf(diag.SevWarning, diag.CatConsistency, "SupportsSG",
			"scatter-gather unsupported but max entries is %d", c.MaxSGEntries)
	}
}
