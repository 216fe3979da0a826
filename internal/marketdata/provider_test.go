package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func writeCSV(t *testing.T, dir, ticker, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ticker+".csv"), []byte(body), 0o644))
}

func TestCSVProvider_LoadsRowsWithinRange(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "005930", "Date,Open,High,Low,Close,AdjClose,Volume\n"+
		"2026-06-29,70000,71000,69500,70500,70500,1000000\n"+
		"2026-06-30,70500,72000,70000,71500,71500,1200000\n"+
		"2026-07-01,71500,72500,71000,72000,72000,900000\n")

	p := NewCSVProvider(dir)
	slab, err := p.Load(context.Background(), []string{"005930"}, d("2026-06-29"), d("2026-07-01"))
	require.NoError(t, err)

	bar, ok := slab.Bar(d("2026-06-29"), "005930")
	require.True(t, ok)
	assert.Equal(t, 70500.0, bar.Close)

	_, ok = slab.Bar(d("2026-07-01"), "005930")
	assert.False(t, ok, "end date is exclusive")
}

func TestCSVProvider_MissingFileIsSkippedNotAnError(t *testing.T) {
	dir := t.TempDir()
	p := NewCSVProvider(dir)
	slab, err := p.Load(context.Background(), []string{"999999"}, d("2026-06-29"), d("2026-07-01"))
	require.NoError(t, err)
	assert.Empty(t, slab.Dates())
}

func TestCSVProvider_ShortRowsAreSkipped(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "035420", "Date,Open,High,Low,Close,AdjClose,Volume\n"+
		"2026-06-29,100,110,90,105\n")
	p := NewCSVProvider(dir)
	slab, err := p.Load(context.Background(), []string{"035420"}, d("2026-06-29"), d("2026-07-01"))
	require.NoError(t, err)
	assert.Empty(t, slab.Dates())
}

func TestCSVProvider_HeaderOnlyFileYieldsNoBars(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "006400", "Date,Open,High,Low,Close,AdjClose,Volume\n")
	p := NewCSVProvider(dir)
	slab, err := p.Load(context.Background(), []string{"006400"}, d("2026-06-29"), d("2026-07-01"))
	require.NoError(t, err)
	assert.Empty(t, slab.Dates())
}

func TestCSVProvider_ContextCancelledStopsEarly(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "005930", "Date,Open,High,Low,Close,AdjClose,Volume\n2026-06-29,1,1,1,1,1,1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewCSVProvider(dir)
	_, err := p.Load(ctx, []string{"005930"}, d("2026-06-29"), d("2026-07-01"))
	assert.Error(t, err)
}

func TestHTTPProvider_NonOKStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 1000)
	_, err := p.Load(context.Background(), []string{"005930"}, d("2026-06-29"), d("2026-07-01"))
	assert.Error(t, err)
}

func TestHTTPProvider_OKStatusReturnsEmptySlab(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, 1000)
	slab, err := p.Load(context.Background(), []string{"005930"}, d("2026-06-29"), d("2026-07-01"))
	require.NoError(t, err)
	assert.NotNil(t, slab)
}
