package breach

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFilterNormalizeDefaults(t *testing.T) {
	t.Parallel()

	f, err := Filter{State: " ny "}.Normalize()
	require.NoError(t, err)
	require.Equal(t, "NY", f.State)
	require.Equal(t, OrderDateDesc, f.Order)
	require.Equal(t, DefaultLimit, f.Limit)

	f, err = Filter{Limit: 10_000}.Normalize()
	require.NoError(t, err)
	require.Equal(t, MaxLimit, f.Limit)
}

func TestFilterNormalizeRejectsBadInput(t *testing.T) {
	t.Parallel()

	since := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.AddDate(0, 0, -1)
	cases := map[string]Filter{
		"negative limit":  {Limit: -1},
		"negative offset": {Offset: -5},
		"unknown order":   {Order: "random"},
		"inverted range":  {Since: &since, Until: &until},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.Normalize()
			require.Error(t, err)
		})
	}
}

func TestFilterMatches(t *testing.T) {
	t.Parallel()

	archived := true
	since := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	b := Breach{State: "TX", Archive: true, BreachSubmissionDate: since.AddDate(0, 1, 0)}

	require.True(t, Filter{State: "tx", Archive: &archived, Since: &since}.Matches(b))
	require.False(t, Filter{State: "CA"}.Matches(b))

	notArchived := false
	require.False(t, Filter{Archive: &notArchived}.Matches(b))

	until := since
	require.False(t, Filter{Until: &until}.Matches(b))
}

func TestParseCategories(t *testing.T) {
	t.Parallel()

	all, err := ParseCategories("all")
	require.NoError(t, err)
	require.Equal(t, []Category{CategoryArchive, CategoryCurrent}, all)

	one, err := ParseCategories("current, current")
	require.NoError(t, err)
	require.Equal(t, []Category{CategoryCurrent}, one)

	_, err = ParseCategories("archive,bogus")
	require.Error(t, err)

	require.Equal(t, "currently_under_investigation", CategoryCurrent.Dir())
	require.Equal(t, "archive", CategoryArchive.Dir())
	require.True(t, CategoryArchive.Archived())
}
