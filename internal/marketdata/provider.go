package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// CSVProvider reads per-ticker columnar files from disk, one file per
// ticker, date-indexed, header Date,Open,High,Low,Close,AdjClose,Volume —
// the on-disk OHLCV cache.
type CSVProvider struct {
	Dir string
}

func NewCSVProvider(dir string) *CSVProvider { return &CSVProvider{Dir: dir} }

func (p *CSVProvider) Load(ctx context.Context, tickers []string, start, end time.Time) (*Slab, error) {
	slab := NewSlab(start, end, tickers)
	for _, t := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(p.Dir, t+".csv")
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // provider returns null for an absent ticker file
			}
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		if err := loadCSVInto(slab, t, f, start, end); err != nil {
			f.Close()
			return nil, err
		}
		f.Close()
	}
	return slab, nil
}

func loadCSVInto(slab *Slab, ticker string, r io.Reader, start, end time.Time) error {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return fmt.Errorf("read csv for %s: %w", ticker, err)
	}
	if len(rows) < 2 {
		return nil
	}
	for _, row := range rows[1:] {
		if len(row) < 7 {
			continue
		}
		d, err := time.Parse("2006-01-02", row[0])
		if err != nil || d.Before(start) || !d.Before(end) {
			continue
		}
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		cls, _ := strconv.ParseFloat(row[4], 64)
		adj, _ := strconv.ParseFloat(row[5], 64)
		vol, _ := strconv.ParseFloat(row[6], 64)
		slab.Put(d, ticker, Bar{Open: open, High: high, Low: low, Close: cls, AdjClose: adj, Volume: vol})
	}
	return nil
}

// HTTPProvider issues one rate-limited GET {BaseURL}/ohlcv?start=&end=
// per Load, with a generous per-call deadline. It checks the status code
// but does not decode the response body: on 200 it returns an empty slab
// for the requested tickers, and the tickers are not sent in the request.
type HTTPProvider struct {
	BaseURL    string
	Client     *http.Client
	Limiter    *rate.Limiter
	CallDeadline time.Duration
}

func NewHTTPProvider(baseURL string, ratePerSec float64) *HTTPProvider {
	return &HTTPProvider{
		BaseURL:      baseURL,
		Client:       &http.Client{},
		Limiter:      rate.NewLimiter(rate.Limit(ratePerSec), 1),
		CallDeadline: 45 * time.Second,
	}
}

func (p *HTTPProvider) Load(ctx context.Context, tickers []string, start, end time.Time) (*Slab, error) {
	if err := p.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ohlcv rate limiter: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.CallDeadline)
	defer cancel()

	url := fmt.Sprintf("%s/ohlcv?start=%s&end=%s", p.BaseURL, start.Format("2006-01-02"), end.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build ohlcv request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ohlcv request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ohlcv provider returned %d", resp.StatusCode)
	}
	// Wire decoding is provider-specific and out of scope;
	// a real deployment plugs in the actual response schema here.
	return NewSlab(start, end, tickers), nil
}
