package marketdata

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"MarketMood/internal/domain/models"
	domrepo "MarketMood/internal/domain/repository"
	applogger "MarketMood/pkg/logger"
)

// Fetcher fans out single-market fetches with bounded concurrency and a
// per-market timeout.
type Fetcher struct {
	src         domrepo.SnapshotSource
	concurrency int
	timeout     time.Duration
	l           *applogger.Logger
}

// FetcherOption configures Fetcher.
type FetcherOption func(*Fetcher)

// WithConcurrency bounds in-flight requests.
func WithConcurrency(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithTimeout bounds each single-market fetch.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) FetcherOption {
	return func(f *Fetcher) { f.l = l }
}

func NewFetcher(src domrepo.SnapshotSource, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{src: src, concurrency: 5, timeout: 15 * time.Second}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name reports the underlying source.
func (f *Fetcher) Name() string { return f.src.Name() }

// Fetch delegates to the underlying source under the per-market timeout.
func (f *Fetcher) Fetch(ctx context.Context, marketID string, daysBack int) (models.MarketSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.fetchOne(ctx, marketID, daysBack)
}

// FetchMany fetches every market independently. Failures and empty series
// are recorded per market; the result lists ids in request order.
func (f *Fetcher) FetchMany(ctx context.Context, marketIDs []string, daysBack int) models.FetchResult {
	type item struct {
		snap models.MarketSnapshot
		err  error
	}
	items := make([]item, len(marketIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, id := range marketIDs {
		g.Go(func() error {
			snap, err := f.Fetch(gctx, id, daysBack)
			if err == nil && snap.Empty() {
				err = fmt.Errorf("%w: %s returned no prices", models.ErrSourceUnavailable, id)
			}
			items[i] = item{snap: snap, err: err}
			return nil
		})
	}
	_ = g.Wait()

	res := models.FetchResult{Snapshots: make(map[string]models.MarketSnapshot, len(marketIDs))}
	for i, id := range marketIDs {
		if err := items[i].err; err != nil {
			res.Failed = append(res.Failed, models.FetchFailure{MarketID: id, Err: err})
			if f.l != nil {
				f.l.Warn("market fetch failed",
					applogger.String("market_id", id),
					applogger.String("source", f.src.Name()),
					applogger.Error(err),
				)
			}
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
		res.Snapshots[id] = items[i].snap
	}
	return res
}

func (f *Fetcher) fetchOne(ctx context.Context, marketID string, daysBack int) (snap models.MarketSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", models.ErrSourceUnavailable, marketID, r)
		}
	}()
	return f.src.Fetch(ctx, marketID, daysBack)
}
