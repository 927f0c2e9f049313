package download

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
)

func TestRemovePartialsAfterTimeout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "breach_report.csv.part")
	touch(t, dir, "OTHER.PART")
	touch(t, dir, "keep.csv")

	removed, err := NewMonitor().RemovePartials(dir)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"breach_report.csv.part", "OTHER.PART"}, removed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "keep.csv", entries[0].Name())
}

func TestRemovePartialsToleratesVanishingEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "a.part")
	touch(t, dir, "b.part")

	m := NewMonitor()
	m.remove = func(path string) error {
		if filepath.Base(path) == "a.part" {
			// The browser finished and renamed the file after the listing.
			return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
		}
		return os.Remove(path)
	}

	removed, err := m.RemovePartials(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"b.part"}, removed)
}

func TestRemovePartialsJoinsOtherErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "a.part")
	touch(t, dir, "b.part")

	m := NewMonitor()
	m.remove = func(path string) error {
		if filepath.Base(path) == "a.part" {
			return fs.ErrPermission
		}
		return os.Remove(path)
	}

	removed, err := m.RemovePartials(dir)
	require.ErrorIs(t, err, fs.ErrPermission)
	require.Equal(t, []string{"b.part"}, removed)
}

func TestRelocateCreatesCategoryDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "breach_report.csv")

	rel, err := Relocate(dir, "breach_report.csv", breach.CategoryCurrent)
	require.NoError(t, err)
	require.False(t, rel.Missing)
	require.Equal(t, filepath.Join(dir, "currently_under_investigation", "breach_report.csv"), rel.Path)
	require.FileExists(t, rel.Path)
	require.NoFileExists(t, filepath.Join(dir, "breach_report.csv"))
}

func TestRelocateReplacesPreviousReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "archive"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "archive", "breach_report.csv"), []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "breach_report.csv"), []byte("new"), 0o600))

	rel, err := Relocate(dir, "breach_report.csv", breach.CategoryArchive)
	require.NoError(t, err)
	data, err := os.ReadFile(rel.Path)
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}

func TestRelocateMissingFileIsNotAnError(t *testing.T) {
	t.Parallel()

	rel, err := Relocate(t.TempDir(), "breach_report.csv", breach.CategoryArchive)
	require.NoError(t, err)
	require.True(t, rel.Missing)
	require.Empty(t, rel.Path)
}

func TestRelocateRejectsPathNames(t *testing.T) {
	t.Parallel()

	_, err := Relocate(t.TempDir(), "../escape.csv", breach.CategoryArchive)
	require.Error(t, err)
	_, err = Relocate(t.TempDir(), "", breach.CategoryArchive)
	require.Error(t, err)
}

func TestFinalizeCompleted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "breach_report.csv")
	touch(t, dir, "stale.csv.part")

	report, err := NewMonitor().Finalize(dir, "breach_report.csv", breach.CategoryArchive, Completed, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, Completed, report.Outcome)
	require.Equal(t, filepath.Join(dir, "archive", "breach_report.csv"), report.Path)
	require.Equal(t, []string{"stale.csv.part"}, report.Removed)
}

func TestFinalizeTimedOutOnlyCleans(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "breach_report.csv.part")

	report, err := NewMonitor().Finalize(dir, "breach_report.csv", breach.CategoryCurrent, TimedOut, nil)
	require.NoError(t, err)
	require.Empty(t, report.Path)
	require.False(t, report.Missing)
	require.Equal(t, []string{"breach_report.csv.part"}, report.Removed)
	require.NoDirExists(t, filepath.Join(dir, "currently_under_investigation"))
}

func TestFinalizeCompletedMissingReport(t *testing.T) {
	t.Parallel()

	report, err := NewMonitor().Finalize(t.TempDir(), "breach_report.csv", breach.CategoryCurrent, Completed, nil)
	require.NoError(t, err)
	require.True(t, report.Missing)
}

func TestRemovePartialsKeepsPopulatedDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	nested := filepath.Join(dir, "partners")
	require.NoError(t, os.Mkdir(nested, 0o750))
	touch(t, nested, "keep.csv")
	touch(t, dir, "breach_report.csv.part")

	removed, err := NewMonitor().RemovePartials(dir)
	require.Error(t, err)
	require.Equal(t, []string{"breach_report.csv.part"}, removed)
	require.FileExists(t, filepath.Join(nested, "keep.csv"))
}
