package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"MarketMood/internal/domain/models"
	"MarketMood/pkg/mathx"
	"MarketMood/pkg/util"
)

// YahooSource reads daily bars from the Yahoo Finance chart API.
type YahooSource struct {
	client   *resty.Client
	registry *Registry
	now      func() time.Time
}

// YahooOption configures YahooSource.
type YahooOption func(*YahooSource)

// WithYahooClock overrides the clock used for the request window.
func WithYahooClock(now func() time.Time) YahooOption {
	return func(s *YahooSource) { s.now = now }
}

func NewYahooSource(baseURL, userAgent string, timeout time.Duration, reg *Registry, opts ...YahooOption) *YahooSource {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	s := &YahooSource{client: client, registry: reg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *YahooSource) Name() string { return string(models.SourceYahoo) }

// Fetch returns the last daysBack calendar days of daily bars for marketID.
func (s *YahooSource) Fetch(ctx context.Context, marketID string, daysBack int) (models.MarketSnapshot, error) {
	m, ok := s.registry.Lookup(marketID)
	if !ok {
		return models.MarketSnapshot{}, fmt.Errorf("%w: market %s", models.ErrNotFound, marketID)
	}

	end := s.now().UTC()
	start := end.AddDate(0, 0, -daysBack)
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"period1":  strconv.FormatInt(start.Unix(), 10),
			"period2":  strconv.FormatInt(end.Unix(), 10),
			"interval": "1d",
		}).
		Get("/v8/finance/chart/" + url.PathEscape(m.Symbol))
	if err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("%w: %s: %v", models.ErrSourceUnavailable, m.Symbol, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return models.MarketSnapshot{}, fmt.Errorf("%w: %s: status %d", models.ErrSourceUnavailable, m.Symbol, resp.StatusCode())
	}

	var chart chartResponse
	if err := json.Unmarshal(resp.Body(), &chart); err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("%w: %s: decode: %v", models.ErrSourceUnavailable, m.Symbol, err)
	}
	snap, err := chart.snapshot(marketID)
	if err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("%w: %s: %v", models.ErrSourceUnavailable, m.Symbol, err)
	}
	snap.AsOfDate = util.StartOfDayUTC(end)
	return snap, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

var errEmptyChart = errors.New("empty chart")

func (c chartResponse) snapshot(marketID string) (models.MarketSnapshot, error) {
	if c.Chart.Error != nil {
		return models.MarketSnapshot{}, fmt.Errorf("%s: %s", c.Chart.Error.Code, c.Chart.Error.Description)
	}
	if len(c.Chart.Result) == 0 || len(c.Chart.Result[0].Indicators.Quote) == 0 {
		return models.MarketSnapshot{}, errEmptyChart
	}
	q := c.Chart.Result[0].Indicators.Quote[0]

	snap := models.MarketSnapshot{MarketID: marketID, Source: models.SourceYahoo}
	last := -1
	for i, cp := range q.Close {
		if cp == nil {
			continue
		}
		snap.TrailingPrices = append(snap.TrailingPrices, *cp)
		if v := at(q.Volume, i); v != nil {
			snap.TrailingVolumes = append(snap.TrailingVolumes, *v)
		}
		last = i
	}
	if last < 0 {
		return models.MarketSnapshot{}, errEmptyChart
	}

	snap.ClosePrice = *q.Close[last]
	snap.OpenPrice = deref(at(q.Open, last), snap.ClosePrice)
	snap.HighPrice = deref(at(q.High, last), snap.ClosePrice)
	snap.LowPrice = deref(at(q.Low, last), snap.ClosePrice)
	snap.Volume = deref(at(q.Volume, last), 0)
	if n := len(snap.TrailingPrices); n > 1 && snap.TrailingPrices[n-2] != 0 {
		prev := snap.TrailingPrices[n-2]
		snap.ChangePct = mathx.Round2((snap.ClosePrice - prev) / prev * 100)
	}
	return snap, nil
}

func at(xs []*float64, i int) *float64 {
	if i < 0 || i >= len(xs) {
		return nil
	}
	return xs[i]
}

func deref(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
