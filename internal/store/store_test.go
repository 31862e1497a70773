package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanab-dev/cleanab/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRawRoundTrip(t *testing.T) {
	s := openTestStore(t)

	records := []model.RawTransaction{
		{
			Date:          time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
			EntryDate:     time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
			Amount:        decimal.RequireFromString("-42.17"),
			ApplicantName: "REWE Markt",
			Purpose:       "Kartenzahlung",
		},
		{
			Date:   time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC),
			Amount: decimal.RequireFromString("1200.00"),
		},
	}
	require.NoError(t, s.PutRaw("DE02120300000000202051", records))

	got, ok, err := s.GetRaw("DE02120300000000202051")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.True(t, got[0].Date.Equal(records[0].Date))
	assert.True(t, got[0].Amount.Equal(records[0].Amount), "amount: got %s", got[0].Amount)
	assert.Equal(t, "REWE Markt", got[0].ApplicantName)
	assert.Empty(t, got[1].Purpose)
}

func TestGetRawMissing(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.GetRaw("DE89370400440532013000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutRawOverwrites(t *testing.T) {
	s := openTestStore(t)
	iban := "DE02120300000000202051"

	require.NoError(t, s.PutRaw(iban, []model.RawTransaction{{Purpose: "old"}}))
	require.NoError(t, s.PutRaw(iban, []model.RawTransaction{{Purpose: "new"}}))

	got, ok, err := s.GetRaw(iban)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Purpose)
}

func TestCleanedCache(t *testing.T) {
	s := openTestStore(t)

	err := s.PutCleaned("DE02120300000000202051", []model.CleanedTransaction{
		{AccountID: "a", Date: "2026-08-21", Amount: -42170, ImportID: "abc"},
	})
	require.NoError(t, err)
}

func TestHoldingValueRoundTrip(t *testing.T) {
	s := openTestStore(t)
	iban := "DE02120300000000202051"

	_, ok, err := s.LastHoldingValue(iban)
	require.NoError(t, err)
	assert.False(t, ok, "no value recorded yet")

	require.NoError(t, s.PutHoldingValue(iban, decimal.RequireFromString("10543.21")))

	got, ok, err := s.LastHoldingValue(iban)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(decimal.RequireFromString("10543.21")), "got %s", got)
}
