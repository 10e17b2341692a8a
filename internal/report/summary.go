package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/goalsarm/goalsfit/internal/fit"
	"github.com/goalsarm/goalsfit/internal/prior"
)

// WriteSummary prints a calibration result as plain-text tables. Styling is
// dropped automatically when w is not a terminal.
func WriteSummary(w io.Writer, d *fit.Diagnostics, params *prior.Set) error {
	r := lipgloss.NewRenderer(w)
	bold := r.NewStyle().Bold(true)

	outcome := "did not converge"
	if d.Converged {
		outcome = "converged"
	}

	var sb strings.Builder
	sb.WriteString(bold.Render("Calibration"))
	sb.WriteString("\n")
	writeTable(&sb, r, nil, [][]string{
		{"Result", fmt.Sprintf("%s (%s)", outcome, d.Status)},
		{"Method", string(d.Method)},
		{"Evaluations", fmt.Sprintf("%d (%d by the optimizer, %d iterations)", d.Evaluations, d.FuncEvaluations, d.MajorIterations)},
		{"Runtime", d.Runtime.Round(time.Millisecond).String()},
	})
	if d.Message != "" {
		fmt.Fprintf(&sb, "Note: %s\n", d.Message)
	}

	sb.WriteString("\n")
	sb.WriteString(bold.Render("Parameters"))
	sb.WriteString("\n")
	rows := make([][]string, 0, len(d.Keys))
	for i, key := range d.Keys {
		row := []string{key, "", formatFloat(d.Vector[i]), ""}
		if p, ok := params.Get(key); ok {
			row[1] = formatFloat(p.Initial)
			row[3] = describePrior(p)
		}
		rows = append(rows, row)
	}
	writeTable(&sb, r, []string{"Name", "Initial", "Fitted", "Prior"}, rows)

	sb.WriteString("\n")
	sb.WriteString(bold.Render("Log densities"))
	sb.WriteString("\n")
	rows = rows[:0]
	for _, s := range d.Sources {
		ll := "disabled"
		if s.Enabled {
			ll = formatFloat(s.LogLikelihood)
		}
		rows = append(rows, []string{s.Name, ll})
	}
	rows = append(rows,
		[]string{"likelihood", formatFloat(d.LogLikelihood)},
		[]string{"prior", formatFloat(d.LogPrior)},
		[]string{"posterior", formatFloat(d.LogPosterior)},
	)
	writeTable(&sb, r, []string{"Term", "Value"}, rows)

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteTable writes a single left-aligned table with an optional header.
func WriteTable(w io.Writer, header []string, rows [][]string) error {
	var sb strings.Builder
	writeTable(&sb, lipgloss.NewRenderer(w), header, rows)
	_, err := io.WriteString(w, sb.String())
	return err
}

// writeTable left-aligns columns to their widest cell. A nil header omits
// the header line.
func writeTable(sb *strings.Builder, r *lipgloss.Renderer, header []string, rows [][]string) {
	n := len(header)
	for _, row := range rows {
		n = max(n, len(row))
	}
	widths := make([]int, n)
	measure := func(row []string) {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	measure(header)
	for _, row := range rows {
		measure(row)
	}

	line := func(row []string, style lipgloss.Style) {
		cells := make([]string, len(row))
		for i, cell := range row {
			if i == len(row)-1 {
				cells[i] = style.Render(cell)
				continue
			}
			cells[i] = style.Width(widths[i] + 2).Render(cell)
		}
		sb.WriteString("  ")
		sb.WriteString(strings.Join(cells, ""))
		sb.WriteString("\n")
	}
	if header != nil {
		line(header, r.NewStyle().Underline(true))
	}
	plain := r.NewStyle()
	for _, row := range rows {
		line(row, plain)
	}
}

func describePrior(p *prior.Parameter) string {
	switch p.Family {
	case prior.FamilyGamma:
		return fmt.Sprintf("gamma(shape=%s, scale=%s)", formatFloat(p.Shape1), formatFloat(p.Shape2))
	case prior.FamilyLogNormal:
		return fmt.Sprintf("lognormal(meanlog=%s, sdlog=%s)", formatFloat(p.Shape1), formatFloat(p.Shape2))
	case prior.FamilyNormal:
		return fmt.Sprintf("normal(mean=%s, sd=%s)", formatFloat(p.Shape1), formatFloat(p.Shape2))
	default:
		return fmt.Sprintf("%s(%s, %s)", p.Family, formatFloat(p.Shape1), formatFloat(p.Shape2))
	}
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.6g", v)
}
