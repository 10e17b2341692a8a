// Package report writes projection outputs, goodness-of-fit plots and
// calibration summaries.
//
// Each output file is independent, so files are written concurrently once
// the projection they describe has finished. Nothing here runs while a
// calibration is in progress.
package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/goalsarm/goalsfit/internal/engine"
	"github.com/goalsarm/goalsfit/internal/template"
)

// Plot file names.
const (
	PlotANC    = "ancfit.png"
	PlotHIV    = "hivfit.png"
	PlotDeaths = "deathsfit.png"
)

// Writer writes report files into Dir, creating it if needed.
type Writer struct {
	Dir string
	// Policy applies to the labels of observations being plotted.
	Policy template.Policy
	Logger *slog.Logger
}

func (w *Writer) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

// CSVNames returns the file names WriteProjection produces, in order.
func CSVNames(out *engine.Outputs) []string {
	arrays := out.Arrays()
	names := make([]string, len(arrays))
	for i, a := range arrays {
		names[i] = a.Name + ".csv"
	}
	return names
}

// WriteProjection writes every output array as a long-format CSV.
func (w *Writer) WriteProjection(ctx context.Context, out *engine.Outputs) ([]string, error) {
	if err := out.CheckShape(); err != nil {
		return nil, err
	}
	jobs := make(map[string]func(io.Writer) error)
	for _, a := range out.Arrays() {
		jobs[a.Name+".csv"] = func(f io.Writer) error { return WriteArray(f, a, out.YearFirst) }
	}
	return w.writeAll(ctx, jobs)
}

// WritePlots draws observed data against the model for every source with
// observations. Sources without observations produce no file.
func (w *Writer) WritePlots(ctx context.Context, out *engine.Outputs, obs Observations) ([]string, error) {
	filler := &template.Filler{
		Policy:    w.Policy,
		YearFirst: out.YearFirst,
		YearFinal: out.YearFinal,
		Logger:    w.logger(),
	}

	jobs := make(map[string]func(io.Writer) error)
	if len(obs.ANC) > 0 {
		jobs[PlotANC] = func(f io.Writer) error {
			return renderPlot(f, "ANC prevalence", "Prevalence", ancSeries(out, obs.ANC))
		}
	}
	if len(obs.HIV) > 0 {
		jobs[PlotHIV] = func(f io.Writer) error {
			s, err := hivSeries(filler, out, obs.HIV)
			if err != nil {
				return err
			}
			return renderPlot(f, "HIV prevalence", "Prevalence", s)
		}
	}
	if len(obs.Deaths) > 0 {
		jobs[PlotDeaths] = func(f io.Writer) error {
			s, err := deathSeries(filler, out, obs.Deaths)
			if err != nil {
				return err
			}
			return renderPlot(f, "HIV deaths", "Deaths", s)
		}
	}
	return w.writeAll(ctx, jobs)
}

// writeAll runs one goroutine per file. The first failure cancels the
// files not yet started. Paths are returned sorted.
func (w *Writer) writeAll(ctx context.Context, jobs map[string]func(io.Writer) error) ([]string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for name, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(w.Dir, name)
			if err := writeFile(path, job); err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
			w.logger().Debug("report file written", "path", path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(jobs))
	for name := range jobs {
		paths = append(paths, filepath.Join(w.Dir, name))
	}
	slices.Sort(paths)
	return paths, nil
}

func writeFile(path string, job func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err := job(bw); err != nil {
		return err
	}
	return bw.Flush()
}
