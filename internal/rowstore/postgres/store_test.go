package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/yoshidak/webwatch/internal/watch"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, "monitor_targets")
	require.NoError(t, err)
	return mock, store
}

func TestListScansTargets(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	rows := pgxmock.NewRows([]string{"id", "word", "url", "source", "frequency", "prev_hash", "prev_len"}).
		AddRow("id-1", "店舗サイト", "https://example.jp", watch.PageWatchSource, 1, "abc", 1200).
		AddRow("id-2", "ラーメン", "", "tabelog", 4, "", 0)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	targets, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, targets, 2)

	require.Equal(t, watch.RowRef("id-1"), targets[0].Ref)
	require.Equal(t, "abc", targets[0].PrevFingerprint)
	require.Equal(t, 1200, targets[0].PrevLength)
	require.True(t, targets[0].PageWatch())

	require.Equal(t, watch.RowRef("id-2"), targets[1].Ref)
	require.False(t, targets[1].Resolved())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCellURL(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE monitor_targets SET url").
		WithArgs("https://tabelog.com/x", "id-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateCell(context.Background(), "id-2", watch.FieldURL, "https://tabelog.com/x")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCellLengthConvertsToInt(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE monitor_targets SET prev_len").
		WithArgs(4096, "id-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateCell(context.Background(), "id-1", watch.FieldLength, "4096")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Error(t, store.UpdateCell(context.Background(), "id-1", watch.FieldLength, "junk"))
	require.Error(t, store.UpdateCell(context.Background(), "id-1", watch.Field("bogus"), "x"))
}

func TestUpdateCellRowMissing(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE monitor_targets SET prev_hash").
		WithArgs("fp", "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateCell(context.Background(), "gone", watch.FieldFingerprint, "fp")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateState(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectExec("UPDATE monitor_targets SET prev_hash = \\$1, prev_len = \\$2").
		WithArgs("newfp", 2048, "id-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.UpdateState(context.Background(), "id-1", "newfp", 2048)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRow(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)

	mock.ExpectExec("DELETE FROM monitor_targets").
		WithArgs("id-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.DeleteRow(context.Background(), "id-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "monitor_targets; DROP TABLE x")
	require.Error(t, err)

	_, err = NewWithPool(nil, "monitor_targets")
	require.Error(t, err)
}
