package caps

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/joshuapare/nicdma/dma/diag"
	"github.com/joshuapare/nicdma/dma/dmalog"
)

var (
	// ErrNotFound indicates no registry entry matches the requested name.
	ErrNotFound = errors.New("caps: device not found")

	// ErrRegistryClosed is returned by Register: capabilities are fixed at build time.
	ErrRegistryClosed = errors.New("caps: runtime registration unsupported")

	// ErrInvalid indicates one or more registry entries failed validation.
	ErrInvalid = errors.New("caps: invalid capability descriptor")

	// ErrUnreachable indicates a buffer outside the device's address range.
	ErrUnreachable = errors.New("caps: address beyond device reach")
)

// Lookup returns the capabilities registered under name or one of its aliases.
func Lookup(name string) (Capabilities, error) {
	if c, ok := registry[name]; ok {
		return c, nil
	}
	if canon, ok := aliases[name]; ok {
		return registry[canon], nil
	}
	return Capabilities{}, fmt.Errorf("%q: %w", name, ErrNotFound)
}

// Canonical resolves an alias to its registry key. Canonical names map to themselves.
func Canonical(name string) (string, bool) {
	if _, ok := registry[name]; ok {
		return name, true
	}
	canon, ok := aliases[name]
	return canon, ok
}

// Names returns the canonical device names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Aliases returns a copy of the alias table.
func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}

// Register always fails; the table cannot change at runtime.
func Register(name string, _ Capabilities) error {
	dmalog.L().Warn("rejected runtime capability registration", zap.String("name", name))
	return fmt.Errorf("%q: %w", name, ErrRegistryClosed)
}

// ValidateAll validates every canonical entry and reports whether all of
// them passed. The per-device reports are returned in name order.
func ValidateAll() (bool, []*diag.Report) {
	log := dmalog.L().Named("caps")
	ok := true
	reports := make([]*diag.Report, 0, len(registry))
	for _, name := range Names() {
		r := Validate(registry[name], name)
		if !r.OK() {
			ok = false
			for _, f := range r.BySeverity(diag.SevError) {
				log.Error("capability validation failed",
					zap.String("name", name),
					zap.String("field", f.Field),
					zap.String("reason", f.Message))
			}
		}
		reports = append(reports, r)
	}
	log.Info("capability registry validated", zap.Int("devices", len(reports)), zap.Bool("ok", ok))
	return ok, reports
}

// MustValidateAll returns ErrInvalid when any registry entry fails validation.
// Driver bring-up calls it once before touching hardware.
func MustValidateAll() error {
	ok, reports := ValidateAll()
	if ok {
		return nil
	}
	var failed []string
	for _, r := range reports {
		if !r.OK() {
			failed = append(failed, r.Subject)
		}
	}
	return fmt.Errorf("%v: %w", failed, ErrInvalid)
}

// Fingerprint returns a stable hash of the registry contents. Tools compare
// it across builds to detect capability changes.
func Fingerprint() uint64 {
	d := xxhash.New()
	for _, name := range Names() {
		c := registry[name]
		fmt.Fprintf(d, "%s|%d|%d|%d|%d|%d|%t|%d|%d|%t|%t|%t|%d\n",
			c.Name, c.AddressWidthBits, c.MaxSGEntries, c.Boundary, c.Alignment,
			c.DescriptorAlignment, c.NeedsAddressLocking, c.RxCopyBreak, c.TxCopyBreak,
			c.CacheCoherent, c.SupportsSG, c.NoBoundaryCrossing, c.MaxSegmentSize)
	}
	return d.Sum64()
}
