package download

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
)

// RemovePartials deletes every marker-named entry in dir. Entries that vanish
// between listing and removal are skipped. Other removal failures do not stop
// the sweep; they are joined into the returned error.
func (m *Monitor) RemovePartials(dir string) ([]string, error) {
	partials, err := m.Partials(dir)
	if err != nil {
		return nil, err
	}
	var (
		removed []string
		errs    []error
	)
	for _, name := range partials {
		err := m.remove(filepath.Join(dir, name))
		switch {
		case err == nil:
			removed = append(removed, name)
		case errors.Is(err, fs.ErrNotExist):
		default:
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
		}
	}
	return removed, errors.Join(errs...)
}

// Relocation describes where a finished report ended up.
type Relocation struct {
	Path    string
	Missing bool
}

// Relocate moves dir/name into the category subdirectory of dir, creating the
// subdirectory when absent and replacing an older report. A missing source file
// is reported through Relocation.Missing rather than as an error.
func Relocate(dir, name string, category breach.Category) (Relocation, error) {
	if name == "" || filepath.Base(name) != name {
		return Relocation{}, fmt.Errorf("invalid report name %q", name)
	}
	target := filepath.Join(dir, category.Dir())
	if err := os.MkdirAll(target, 0o750); err != nil {
		return Relocation{}, fmt.Errorf("create category dir: %w", err)
	}
	src := filepath.Join(dir, name)
	dst := filepath.Join(target, name)
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Relocation{Missing: true}, nil
		}
		return Relocation{}, fmt.Errorf("move report: %w", err)
	}
	return Relocation{Path: dst}, nil
}

// Report summarizes the post-download policy applied by Finalize.
type Report struct {
	Outcome Outcome
	Path    string
	Missing bool
	Removed []string
}

// Finalize applies the caller-side cleanup once the browser is gone: on
// Completed the report is moved into its category subdirectory, then any
// remaining partial files are swept. Missing files and sweep failures are
// logged, never returned.
func (m *Monitor) Finalize(
	dir string,
	name string,
	category breach.Category,
	outcome Outcome,
	logger *zap.Logger,
) (Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := Report{Outcome: outcome}
	if outcome == Completed {
		rel, err := Relocate(dir, name, category)
		if err != nil {
			return report, err
		}
		report.Path = rel.Path
		report.Missing = rel.Missing
		if rel.Missing {
			logger.Warn("expected report not found",
				zap.String("dir", dir),
				zap.String("file", name),
				zap.String("category", category.String()),
			)
		}
	}
	removed, err := m.RemovePartials(dir)
	if err != nil {
		logger.Warn("partial download cleanup incomplete", zap.String("dir", dir), zap.Error(err))
	}
	report.Removed = removed
	if len(removed) > 0 {
		logger.Info("removed partial downloads", zap.Strings("files", removed))
	}
	return report, nil
}
