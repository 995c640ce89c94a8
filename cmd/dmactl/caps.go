package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/nicdma/dma/caps"
)

func init() {
	cmd := newCapsCmd()
	rootCmd.AddCommand(cmd)
}

func newCapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "caps",
		Short: "Inspect the device capability registry",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every known device",
		Long: `The list command prints one row per registered device with its bus
family, address width, boundary rule and scatter-gather limit.

Example:
  dmactl caps list
  dmactl caps list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapsList()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <device>",
		Short: "Show one device's capabilities",
		Long: `The show command prints the capability record for a device. Aliases
such as 3C515TX are accepted.

Example:
  dmactl caps show 3C515-TX
  dmactl caps show 3c905c --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapsShow(args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate every registry entry",
		Long: `The validate command checks every registry entry for out-of-range
values and family inconsistencies. It fails when any entry has an ERROR.

Example:
  dmactl caps validate
  dmactl caps validate --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapsValidate()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "segments <device> <addr> <size>",
		Short: "Split a buffer into the device's scatter-gather fragments",
		Long: `The segments command shows how a transfer buffer at a physical address
is cut into descriptor fragments for a device. Numbers accept 0x prefixes.

Example:
  dmactl caps segments 3C905C 0x1fc00 0x20800
  dmactl caps segments 3C515-TX 0x2fc00 1536`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapsSegments(args)
		},
	})
	return cmd
}

func registryEntries() []caps.Capabilities {
	names := caps.Names()
	out := make([]caps.Capabilities, 0, len(names))
	for _, n := range names {
		c, err := caps.Lookup(n)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

func runCapsList() error {
	entries := registryEntries()
	if jsonOut {
		return printJSON(entries)
	}
	if quiet {
		return nil
	}
	if err := newPrinter().Capabilities(entries); err != nil {
		return err
	}
	printVerbose("registry fingerprint %016x\n", caps.Fingerprint())
	return nil
}

func runCapsShow(args []string) error {
	c, err := caps.Lookup(args[0])
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(c)
	}
	printInfo("Device:              %s\n", c.Name)
	printInfo("Family:              %s\n", caps.FamilyOf(c.Name))
	printInfo("Address width:       %d bits\n", c.AddressWidthBits)
	if limit := c.AddressLimit(); limit != 0 {
		printInfo("Address limit:       %#x\n", limit)
	}
	if b := c.EffectiveBoundary(); b != 0 {
		printInfo("Boundary:            %#x (no crossing)\n", b)
	} else {
		printInfo("Boundary:            none\n")
	}
	printInfo("Alignment:           %d (descriptors %d)\n", c.Alignment, c.DescriptorAlignment)
	printInfo("Scatter-gather:      %d segments of up to %d bytes\n", c.MaxSegments(), c.MaxSegmentSize)
	printInfo("Copy-break rx/tx:    %d/%d\n", c.RxCopyBreak, c.TxCopyBreak)
	printInfo("Address locking:     %t\n", c.NeedsAddressLocking)
	printInfo("Cache coherent:      %t\n", c.CacheCoherent)
	return nil
}

func runCapsSegments(args []string) error {
	c, err := caps.Lookup(args[0])
	if err != nil {
		return err
	}
	addr, err := strconv.ParseUint(args[1], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", args[1], err)
	}
	size, err := strconv.ParseUint(args[2], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", args[2], err)
	}
	segs, err := c.Segments(addr, size)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(segs)
	}
	for i, sg := range segs {
		printInfo("%d: %#x +%d\n", i, sg.Addr, sg.Size)
	}
	return nil
}

var errRegistryInvalid = errors.New("capability registry has errors")

func runCapsValidate() error {
	ok, reports := caps.ValidateAll()
	if jsonOut {
		if err := printJSON(map[string]interface{}{
			"valid":   ok,
			"reports": reports,
		}); err != nil {
			return err
		}
	} else if !quiet {
		if err := newPrinter().Report(reports...); err != nil {
			return err
		}
	}
	if !ok {
		printError("%d devices checked\n", len(reports))
		return errRegistryInvalid
	}
	return nil
}
