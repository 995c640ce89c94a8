// Package render formats capability tables, diagnostic reports and
// allocator statistics for terminals and markdown.
package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/nicdma/dma/caps"
	"github.com/joshuapare/nicdma/dma/diag"
	"github.com/joshuapare/nicdma/dma/pool"
	"github.com/joshuapare/nicdma/dma/ring"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Printer writes tables to an output stream.
type Printer struct {
	w     io.Writer
	color bool
	num   *message.Printer
}

// New returns a Printer writing to w. Severity labels are colored when color is set.
func New(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color, num: message.NewPrinter(language.English)}
}

func (p *Printer) table() *tablewriter.Table {
	return tablewriter.NewTable(p.w,
		tablewriter.WithRenderer(renderer.NewMarkdown(tw.Rendition{Streaming: true})),
	)
}

func (p *Printer) write(headers []string, rows [][]string) error {
	t := p.table()
	t.Header(headers)
	if err := t.Bulk(rows); err != nil {
		return err
	}
	return t.Render()
}

// Bytes formats n with digit grouping.
func (p *Printer) Bytes(n uint64) string {
	return p.num.Sprintf("%d", n)
}

func hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Severity returns the label for s, colored when enabled.
func (p *Printer) Severity(s diag.Severity) string {
	if !p.color {
		return s.String()
	}
	switch s {
	case diag.SevError:
		return errorStyle.Render(s.String())
	case diag.SevWarning:
		return warningStyle.Render(s.String())
	default:
		return infoStyle.Render(s.String())
	}
}

// Capabilities writes one row per device.
func (p *Printer) Capabilities(list []caps.Capabilities) error {
	headers := []string{"Device", "Family", "Width", "Boundary", "Align", "SG", "Lock", "Copy-break rx/tx"}
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		boundary := "none"
		if b := c.EffectiveBoundary(); b != 0 {
			boundary = hex(b)
		}
		rows = append(rows, []string{
			c.Name,
			caps.FamilyOf(c.Name).String(),
			strconv.Itoa(c.AddressWidthBits),
			boundary,
			strconv.FormatUint(c.Alignment, 10),
			strconv.Itoa(c.MaxSegments()),
			yesNo(c.NeedsAddressLocking),
			fmt.Sprintf("%d/%d", c.RxCopyBreak, c.TxCopyBreak),
		})
	}
	return p.write(headers, rows)
}

// Report writes the findings of every report followed by a one-line verdict
// per report. Reports without findings produce only the verdict.
func (p *Printer) Report(reports ...*diag.Report) error {
	var rows [][]string
	for _, r := range reports {
		for _, f := range r.Findings {
			rows = append(rows, []string{p.Severity(f.Severity), f.Category.String(), f.Subject, f.Field, f.Message})
		}
	}
	if len(rows) > 0 {
		if err := p.write([]string{"Severity", "Category", "Subject", "Field", "Message"}, rows); err != nil {
			return err
		}
	}
	for _, r := range reports {
		if _, err := fmt.Fprintln(p.w, p.verdict(r)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) verdict(r *diag.Report) string {
	status := "OK"
	if !r.OK() {
		status = "FAIL"
	}
	if p.color {
		if r.OK() {
			status = okStyle.Render(status)
		} else {
			status = errorStyle.Render(status)
		}
	}
	return fmt.Sprintf("%s %s (%d errors, %d warnings, %d info)",
		status, r.Subject, r.Summary.Errors, r.Summary.Warnings, r.Summary.Info)
}

// PoolStats writes one row per pool and a totals line.
func (p *Printer) PoolStats(st pool.Stats) error {
	headers := []string{"Pool", "State", "Device base", "Size", "Allocated", "Peak", "Free blocks", "Largest free", "Util %", "Locked", "BV", "AF"}
	rows := make([][]string, 0, len(st.Pools))
	for _, ps := range st.Pools {
		rows = append(rows, []string{
			strconv.Itoa(ps.Index),
			ps.State.String(),
			hex(ps.DeviceBase),
			p.Bytes(ps.TotalSize),
			p.Bytes(ps.Allocated),
			p.Bytes(ps.Peak),
			strconv.Itoa(ps.FreeBlocks),
			p.Bytes(ps.LargestFree),
			strconv.FormatFloat(ps.Utilization, 'f', 1, 64),
			yesNo(ps.Locked),
			strconv.FormatUint(ps.BoundaryViolations, 10),
			strconv.FormatUint(ps.AllocationFailures, 10),
		})
	}
	if err := p.write(headers, rows); err != nil {
		return err
	}
	_, err := p.num.Fprintf(p.w, "total %d bytes in %d active pools, %d allocated, %d allocs, %d frees, %d failed\n",
		st.TotalSize, st.ActivePools, st.Allocated, st.Allocs, st.Frees, st.FailedAllocs)
	return err
}

// Health writes the score line and any deductions.
func (p *Printer) Health(h pool.Health) error {
	if _, err := fmt.Fprintf(p.w, "health score %d\n", h.Score); err != nil {
		return err
	}
	if h.Report == nil || len(h.Report.Findings) == 0 {
		return nil
	}
	return p.Report(h.Report)
}

// RingStats writes both rings of every device.
func (p *Printer) RingStats(devices []ring.DeviceStats) error {
	headers := []string{"Device", "Class", "Slots", "Slot size", "In use", "Head", "Tail", "Allocs", "Frees", "Failures", "Block"}
	var rows [][]string
	for _, d := range devices {
		for _, s := range []ring.Stats{d.Large, d.Small} {
			rows = append(rows, []string{
				strconv.Itoa(d.Device),
				s.Class,
				strconv.Itoa(s.Count),
				p.Bytes(s.SlotSize),
				strconv.Itoa(s.InUse),
				strconv.Itoa(s.Head),
				strconv.Itoa(s.Tail),
				strconv.FormatUint(s.AllocCount, 10),
				strconv.FormatUint(s.FreeCount, 10),
				strconv.FormatUint(s.AllocFailures, 10),
				p.Bytes(s.BlockSize),
			})
		}
	}
	return p.write(headers, rows)
}
