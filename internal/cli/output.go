package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/signalsfoundry/constellation-allocator/core"
	"github.com/signalsfoundry/constellation-allocator/internal/allocsvc"
	"github.com/signalsfoundry/constellation-allocator/internal/store"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// colorEnabled reports whether w is a terminal and NO_COLOR is unset.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func colorize(w io.Writer, color, text string) string {
	if colorEnabled(w) {
		return color + text + colorReset
	}
	return text
}

// fillColor is green for a full placement, yellow for partial, red for none.
func fillColor(allocated, total int) string {
	switch {
	case allocated == total:
		return colorGreen
	case allocated == 0:
		return colorRed
	default:
		return colorYellow
	}
}

func renderReport(w io.Writer, resp *allocsvc.AllocateResponse) {
	header := fmt.Sprintf("Step %d", resp.Report.Step)
	if resp.Dataset != "" {
		header += " of " + resp.Dataset
	}
	fmt.Fprintln(w, header)

	for i, res := range resp.Report.Results {
		total := res.Allocated + len(res.Unallocated)
		count := fmt.Sprintf("%d/%d", res.Allocated, total)
		var d time.Duration
		if i < len(resp.Report.Durations) {
			d = resp.Report.Durations[i]
		}
		fmt.Fprintf(w, "\n%s: maximum applications allocated: %s (%s, %d nodes)\n",
			res.Allocator, colorize(w, fillColor(res.Allocated, total), count), formatDuration(d), res.Stats.NodesVisited)

		fmt.Fprintf(w, "  %-20s %s\n", "Application", "Satellite")
		fmt.Fprintf(w, "  %s\n", strings.Repeat("─", 40))
		for _, a := range res.Assignments {
			fmt.Fprintf(w, "  %-20s %s\n", truncate(a.ApplicationID, 20), a.SatelliteID)
		}
		for _, id := range res.Unallocated {
			fmt.Fprintf(w, "  %-20s %s\n", truncate(id, 20), colorize(w, colorRed, "unallocated"))
		}
	}

	exact, greedy := resp.Report.Result(core.ExactName), resp.Report.Result(core.GreedyName)
	if exact != nil && greedy != nil && exact.Allocated > greedy.Allocated {
		fmt.Fprintf(w, "\ngreedy placed %d fewer application(s) than exact\n", exact.Allocated-greedy.Allocated)
	}
}

func renderSweepHeader(w io.Writer) {
	fmt.Fprintf(w, "%-6s %-8s %-10s %-10s %s\n", "Step", "Alloc", "Placed", "Nodes", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", 50))
}

func renderSweepRow(w io.Writer, report *core.StepReport) {
	for i, res := range report.Results {
		total := res.Allocated + len(res.Unallocated)
		placed := fmt.Sprintf("%-10s", fmt.Sprintf("%d/%d", res.Allocated, total))
		fmt.Fprintf(w, "%-6d %-8s %s %-10d %s\n",
			report.Step,
			res.Allocator,
			colorize(w, fillColor(res.Allocated, total), placed),
			res.Stats.NodesVisited,
			formatDuration(report.Durations[i]))
	}
}

func renderHistory(w io.Writer, runs []*store.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-6s %-14s %-6s %-8s %-11s %-8s %-10s %s\n",
		"ID", "Dataset", "Step", "Alloc", "Mode", "Placed", "Duration", "Recorded")
	fmt.Fprintln(w, strings.Repeat("─", 88))
	for _, r := range runs {
		placed := fmt.Sprintf("%-8s", fmt.Sprintf("%d/%d", r.Allocated, r.Total))
		mode := r.Mode
		if mode == "" {
			mode = "-"
		}
		fmt.Fprintf(w, "%-6d %-14s %-6d %-8s %-11s %s %-10s %s\n",
			r.ID,
			truncate(r.Dataset, 14),
			r.Step,
			r.Allocator,
			mode,
			colorize(w, fillColor(r.Allocated, r.Total), placed),
			formatDuration(r.Duration),
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func renderRun(w io.Writer, r *store.RunRecord) {
	fmt.Fprintf(w, "Run %d (%s)\n", r.ID, r.RunID)
	fmt.Fprintf(w, "  dataset:   %s\n", r.Dataset)
	fmt.Fprintf(w, "  step:      %d\n", r.Step)
	fmt.Fprintf(w, "  allocator: %s\n", r.Allocator)
	fmt.Fprintf(w, "  placed:    %d/%d\n", r.Allocated, r.Total)
	fmt.Fprintf(w, "  nodes:     %d (pruned %d)\n", r.NodesVisited, r.Pruned)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-20s %s\n", "Application", "Satellite")
	fmt.Fprintf(w, "  %s\n", strings.Repeat("─", 40))
	for _, a := range r.Assignments {
		fmt.Fprintf(w, "  %-20s %s\n", truncate(a.ApplicationID, 20), a.SatelliteID)
	}
}

func renderDescription(w io.Writer, d *allocsvc.Description) {
	name := d.Dataset
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(w, "Scenario %s: %d satellites, %d applications, %d steps\n\n",
		name, len(d.Satellites), d.Applications, d.Steps)
	fmt.Fprintf(w, "%-20s %-8s %-8s %s\n", "Satellite", "CPU", "Memory", "Radius")
	fmt.Fprintln(w, strings.Repeat("─", 50))
	for _, s := range d.Satellites {
		fmt.Fprintf(w, "%-20s %-8d %-8d %g\n", truncate(s.ID, 20), s.CPU, s.Memory, s.CoverageRadius)
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
