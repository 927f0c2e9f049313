package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
)

var selectCols = []string{
	"id",
	"name_of_covered_entity",
	"state",
	"covered_entity_type",
	"individuals_affected",
	"breach_submission_date",
	"type_of_breach",
	"location_of_breached_information",
	"business_associate_present",
	"web_description",
	"archive",
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *BreachStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewBreachStoreWithPool(mock, "")
	require.NoError(t, err)
	return mock, store
}

func sampleBreach() breach.Breach {
	return breach.Breach{
		ID:                            7,
		NameOfCoveredEntity:           "Acme Health",
		State:                         "CA",
		CoveredEntityType:             "Healthcare Provider",
		IndividualsAffected:           1200,
		BreachSubmissionDate:          time.Date(2023, 3, 4, 0, 0, 0, 0, time.UTC),
		TypeOfBreach:                  "Hacking/IT Incident",
		LocationOfBreachedInformation: "Network Server",
		BusinessAssociatePresent:      true,
		WebDescription:                "",
		Archive:                       false,
	}
}

func addRow(rows *pgxmock.Rows, b breach.Breach) *pgxmock.Rows {
	return rows.AddRow(
		b.ID,
		b.NameOfCoveredEntity,
		b.State,
		b.CoveredEntityType,
		b.IndividualsAffected,
		b.BreachSubmissionDate,
		b.TypeOfBreach,
		b.LocationOfBreachedInformation,
		b.BusinessAssociatePresent,
		b.WebDescription,
		b.Archive,
	)
}

func TestNewBreachStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewBreachStoreWithPool(nil, "breaches")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewBreachStoreWithPool(mock, "breaches; DROP TABLE x")
	require.Error(t, err)

	_, err = NewBreachStore(context.Background(), Config{})
	require.Error(t, err)
}

func TestReplaceCategoryCopiesRowsInTransaction(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	rows := []breach.Breach{sampleBreach(), sampleBreach()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM breaches WHERE archive = $1")).
		WithArgs(true).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectCopyFrom(pgx.Identifier{"breaches"}, breachColumns).
		WillReturnResult(2)
	mock.ExpectCommit()

	n, err := store.ReplaceCategory(context.Background(), true, rows)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceCategoryRollsBackOnCopyFailure(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM breaches").
		WithArgs(false).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"breaches"}, breachColumns).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err := store.ReplaceCategory(context.Background(), false, []breach.Breach{sampleBreach()})
	require.ErrorContains(t, err, "copy failed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListBuildsFilteredQuery(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	archived := false
	since := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	want := sampleBreach()

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM breaches WHERE state = $1 AND archive = $2 AND breach_submission_date >= $3 "+
			"ORDER BY individuals_affected DESC, id ASC LIMIT $4 OFFSET $5")).
		WithArgs("CA", false, since, 10, 20).
		WillReturnRows(addRow(pgxmock.NewRows(selectCols), want))

	got, err := store.List(context.Background(), breach.Filter{
		State:   "ca",
		Archive: &archived,
		Since:   &since,
		Order:   breach.OrderAffectedDesc,
		Limit:   10,
		Offset:  20,
	})
	require.NoError(t, err)
	require.Equal(t, []breach.Breach{want}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDefaultsToNewestFirst(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM breaches ORDER BY breach_submission_date DESC, id DESC LIMIT $1 OFFSET $2")).
		WithArgs(breach.DefaultLimit, 0).
		WillReturnRows(pgxmock.NewRows(selectCols))

	got, err := store.List(context.Background(), breach.Filter{})
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRejectsInvalidFilter(t *testing.T) {
	t.Parallel()

	_, store := newMockStore(t)
	_, err := store.List(context.Background(), breach.Filter{Order: "sideways"})
	require.Error(t, err)
}

func TestGet(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	want := sampleBreach()
	mock.ExpectQuery(regexp.QuoteMeta("FROM breaches WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(addRow(pgxmock.NewRows(selectCols), want))
	mock.ExpectQuery(regexp.QuoteMeta("FROM breaches WHERE id = $1")).
		WithArgs(int64(8)).
		WillReturnError(pgx.ErrNoRows)

	got, err := store.Get(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = store.Get(context.Background(), 8)
	require.ErrorIs(t, err, breach.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSummarizeStates(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	archived := true
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT state, COUNT(*), COALESCE(SUM(individuals_affected), 0) FROM breaches WHERE archive = $1 GROUP BY state ORDER BY state")).
		WithArgs(true).
		WillReturnRows(pgxmock.NewRows([]string{"state", "count", "sum"}).
			AddRow("CA", int64(3), int64(4500)).
			AddRow("NY", int64(1), int64(500)))

	got, err := store.SummarizeStates(context.Background(), &archived)
	require.NoError(t, err)
	require.Equal(t, []breach.StateSummary{
		{State: "CA", Breaches: 3, IndividualsAffected: 4500},
		{State: "NY", Breaches: 1, IndividualsAffected: 500},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS breaches").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
