package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MarketMood/internal/domain/models"
	pkgch "MarketMood/pkg/clickhouse"
	applogger "MarketMood/pkg/logger"
	"MarketMood/pkg/mathx"
	"MarketMood/pkg/util"
)

// CHSchema returns the DDL for the daily bar table read by CHSnapshotSource.
func CHSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
            market_id LowCardinality(String),
            day       Date,
            open      Float64,
            high      Float64,
            low       Float64,
            close     Float64,
            volume    Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (market_id, day)`, database, table),
	}
}

// DailyBar is one row of the daily bar table.
type DailyBar struct {
	Day    time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// CHSnapshotSource reads market snapshots from a ClickHouse daily bar table.
type CHSnapshotSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHSnapshotSource(ch *pkgch.Client, table string) *CHSnapshotSource {
	return &CHSnapshotSource{db: ch.DB(), table: ch.Database() + "." + table}
}

// SetLogger injects a structured logger.
func (s *CHSnapshotSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSnapshotSource) Name() string { return string(models.SourceClickHouse) }

// Fetch returns the latest daysBack bars of marketID in ascending order.
func (s *CHSnapshotSource) Fetch(ctx context.Context, marketID string, daysBack int) (models.MarketSnapshot, error) {
	bars, err := s.LatestBars(ctx, marketID, daysBack)
	if err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("%w: %v", models.ErrSourceUnavailable, err)
	}
	return SnapshotFromBars(marketID, bars), nil
}

// LatestBars returns up to n newest bars, oldest first.
func (s *CHSnapshotSource) LatestBars(ctx context.Context, marketID string, n int) ([]DailyBar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT day, open, high, low, close, volume
        FROM %s FINAL
        WHERE market_id = ?
        ORDER BY day DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, marketID, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_bars query error",
				applogger.String("table", s.table),
				applogger.String("market_id", marketID),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	tmp := make([]DailyBar, 0, n)
	for rows.Next() {
		var b DailyBar
		if err := rows.Scan(&b.Day, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse latest_bars scan error",
					applogger.String("table", s.table),
					applogger.String("market_id", marketID),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		tmp = append(tmp, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Debug("clickhouse latest_bars ok",
			applogger.String("table", s.table),
			applogger.String("market_id", marketID),
			applogger.Int("limit", n),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

// SnapshotFromBars folds ascending daily bars into a snapshot. An empty
// input yields an empty snapshot.
func SnapshotFromBars(marketID string, bars []DailyBar) models.MarketSnapshot {
	snap := models.MarketSnapshot{MarketID: marketID, Source: models.SourceClickHouse}
	if len(bars) == 0 {
		return snap
	}
	snap.TrailingPrices = make([]float64, len(bars))
	snap.TrailingVolumes = make([]float64, len(bars))
	for i, b := range bars {
		snap.TrailingPrices[i] = b.Close
		snap.TrailingVolumes[i] = b.Volume
	}
	last := bars[len(bars)-1]
	snap.AsOfDate = util.StartOfDayUTC(last.Day)
	snap.ClosePrice = last.Close
	snap.OpenPrice = last.Open
	snap.HighPrice = last.High
	snap.LowPrice = last.Low
	snap.Volume = last.Volume
	if len(bars) > 1 {
		if prev := bars[len(bars)-2].Close; prev != 0 {
			snap.ChangePct = mathx.Round2((last.Close - prev) / prev * 100)
		}
	}
	return snap
}
