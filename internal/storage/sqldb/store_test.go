package sqldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ interfaces.LedgerStore = (*Store)(nil)

func newSQLiteStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := OpenSQLite(common.NewSilentLogger(), path)
	require.NoError(t, err)
	return s
}

func TestSQLite_UpsertLoadDelete(t *testing.T) {
	s := newSQLiteStore(t, filepath.Join(t.TempDir(), "db", "tally.db"))
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, models.Position{Ticker: "MSFT", Quantity: 2, AverageCost: 50}))
	require.NoError(t, s.Upsert(ctx, models.Position{Ticker: "AAPL", Quantity: 10, AverageCost: 100}))
	require.NoError(t, s.Upsert(ctx, models.Position{Ticker: "AAPL", Quantity: 20, AverageCost: 150}))

	got, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Position{
		{Ticker: "AAPL", Quantity: 20, AverageCost: 150},
		{Ticker: "MSFT", Quantity: 2, AverageCost: 50},
	}, got)

	require.NoError(t, s.Delete(ctx, "MSFT"))
	require.NoError(t, s.Delete(ctx, "GONE"))

	got, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Position{{Ticker: "AAPL", Quantity: 20, AverageCost: 150}}, got)
}

func TestSQLite_SchemaColumns(t *testing.T) {
	s := newSQLiteStore(t, filepath.Join(t.TempDir(), "tally.db"))
	defer s.Close()

	m := s.db.Migrator()
	assert.True(t, m.HasTable("portfolio"))
	for _, col := range []string{"ticker", "quantity", "average_price"} {
		assert.True(t, m.HasColumn(&positionRow{}, col), "missing column %s", col)
	}
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.db")
	ctx := context.Background()

	s := newSQLiteStore(t, path)
	require.NoError(t, s.Upsert(ctx, models.Position{Ticker: "VOO", Quantity: 1, AverageCost: 410}))
	require.NoError(t, s.Close())

	s = newSQLiteStore(t, path)
	defer s.Close()
	got, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpenPostgres_RequiresDSN(t *testing.T) {
	_, err := OpenPostgres(common.NewSilentLogger(), " ")
	assert.Error(t, err)
}
