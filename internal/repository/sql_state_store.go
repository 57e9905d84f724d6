package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"MarketMood/internal/domain/models"
	domrepo "MarketMood/internal/domain/repository"
	applogger "MarketMood/pkg/logger"
	"MarketMood/pkg/sqldb"
	"MarketMood/pkg/util"
)

// Schema is shared by sqlite and postgres. Dates are stored as YYYY-MM-DD
// text so lexical order matches calendar order.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS market_states (
		market_id      TEXT NOT NULL,
		as_of_date     TEXT NOT NULL,
		mood_index     DOUBLE PRECISION NOT NULL CHECK (mood_index BETWEEN -1 AND 1),
		mood_level     TEXT NOT NULL,
		volatility_30d DOUBLE PRECISION NOT NULL,
		trend_strength DOUBLE PRECISION NOT NULL,
		return_today   DOUBLE PRECISION NOT NULL,
		volume_score   DOUBLE PRECISION NOT NULL,
		close_price    DOUBLE PRECISION NOT NULL,
		volume         DOUBLE PRECISION NOT NULL,
		change_pct     DOUBLE PRECISION NOT NULL,
		source         TEXT NOT NULL,
		updated_at     BIGINT NOT NULL,
		PRIMARY KEY (market_id, as_of_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_market_states_date ON market_states (as_of_date)`,
	`CREATE TABLE IF NOT EXISTS correlation_edges (
		source_id  TEXT NOT NULL,
		target_id  TEXT NOT NULL,
		weight     DOUBLE PRECISION NOT NULL,
		sign       TEXT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (source_id, target_id)
	)`,
}

const (
	upsertStateSQL = `
        INSERT INTO market_states (market_id, as_of_date, mood_index, mood_level, volatility_30d,
            trend_strength, return_today, volume_score, close_price, volume, change_pct, source, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (market_id, as_of_date) DO UPDATE SET
            mood_index = excluded.mood_index,
            mood_level = excluded.mood_level,
            volatility_30d = excluded.volatility_30d,
            trend_strength = excluded.trend_strength,
            return_today = excluded.return_today,
            volume_score = excluded.volume_score,
            close_price = excluded.close_price,
            volume = excluded.volume,
            change_pct = excluded.change_pct,
            source = excluded.source,
            updated_at = excluded.updated_at
    `
	upsertEdgeSQL = `
        INSERT INTO correlation_edges (source_id, target_id, weight, sign, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (source_id, target_id) DO UPDATE SET
            weight = excluded.weight,
            sign = excluded.sign,
            updated_at = excluded.updated_at
    `
	stateColumns = `market_id, as_of_date, mood_index, mood_level, volatility_30d, trend_strength,
        return_today, volume_score, close_price, volume, change_pct, source, updated_at`
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLStateStore implements PersistenceGateway over database/sql.
type SQLStateStore struct {
	client *sqldb.Client
	db     *sql.DB
	l      *applogger.Logger
}

func NewSQLStateStore(c *sqldb.Client) *SQLStateStore {
	return &SQLStateStore{client: c, db: c.DB()}
}

// SetLogger injects a structured logger.
func (s *SQLStateStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates tables and indexes if missing.
func (s *SQLStateStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, Schema)
}

func (s *SQLStateStore) UpsertState(ctx context.Context, st models.DailyState) error {
	return upsertState(ctx, s.db, s.client.Driver(), st)
}

func (s *SQLStateStore) UpsertEdge(ctx context.Context, e models.CorrelationEdge, updatedAt time.Time) error {
	return upsertEdge(ctx, s.db, s.client.Driver(), e, updatedAt)
}

// WithBatch runs fn in one transaction. Every write made through the handed
// StateWriter is wrapped in its own savepoint; a failed write is rolled back
// to that savepoint and the transaction continues. fn's error aborts the
// whole batch.
func (s *SQLStateStore) WithBatch(ctx context.Context, fn func(w domrepo.StateWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", models.ErrPersistenceFailure, err)
	}
	w := &batchWriter{tx: tx, driver: s.client.Driver()}
	if err := fn(w); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", models.ErrPersistenceFailure, err)
	}
	return nil
}

type batchWriter struct {
	tx     *sql.Tx
	driver string
	n      int
}

func (w *batchWriter) UpsertState(ctx context.Context, st models.DailyState) error {
	return w.isolated(ctx, func() error { return upsertState(ctx, w.tx, w.driver, st) })
}

func (w *batchWriter) UpsertEdge(ctx context.Context, e models.CorrelationEdge, updatedAt time.Time) error {
	return w.isolated(ctx, func() error { return upsertEdge(ctx, w.tx, w.driver, e, updatedAt) })
}

func (w *batchWriter) isolated(ctx context.Context, write func() error) error {
	w.n++
	sp := fmt.Sprintf("sp_%d", w.n)
	if _, err := w.tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("%w: savepoint: %v", models.ErrPersistenceFailure, err)
	}
	if err := write(); err != nil {
		if _, rerr := w.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rerr != nil {
			return fmt.Errorf("%w: %v (rollback: %v)", models.ErrPersistenceFailure, err, rerr)
		}
		_, _ = w.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp)
		return err
	}
	if _, err := w.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("%w: release: %v", models.ErrPersistenceFailure, err)
	}
	return nil
}

func upsertState(ctx context.Context, db execer, driver string, st models.DailyState) error {
	if st.MarketID == "" {
		return fmt.Errorf("%w: empty market id", models.ErrPersistenceFailure)
	}
	_, err := db.ExecContext(ctx, sqldb.Rebind(driver, upsertStateSQL),
		st.MarketID,
		util.FormatDate(st.Date),
		st.MoodIndex,
		string(st.MoodLevel),
		st.Volatility30d,
		st.TrendStrength,
		st.ReturnToday,
		st.VolumeScore,
		st.ClosePrice,
		st.Volume,
		st.ChangePct,
		string(st.Source),
		st.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: upsert state %s: %v", models.ErrPersistenceFailure, st.MarketID, err)
	}
	return nil
}

func upsertEdge(ctx context.Context, db execer, driver string, e models.CorrelationEdge, updatedAt time.Time) error {
	if e.SourceID == "" || e.TargetID == "" {
		return fmt.Errorf("%w: edge without endpoints", models.ErrPersistenceFailure)
	}
	_, err := db.ExecContext(ctx, sqldb.Rebind(driver, upsertEdgeSQL),
		e.SourceID, e.TargetID, e.Weight, string(e.Sign), updatedAt.Unix())
	if err != nil {
		return fmt.Errorf("%w: upsert edge %s-%s: %v", models.ErrPersistenceFailure, e.SourceID, e.TargetID, err)
	}
	return nil
}

// LatestDate returns the newest as_of_date, or ErrNotFound on an empty table.
func (s *SQLStateStore) LatestDate(ctx context.Context) (time.Time, error) {
	var d sql.NullString
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(as_of_date) FROM market_states").Scan(&d); err != nil {
		return time.Time{}, fmt.Errorf("latest date: %w", err)
	}
	if !d.Valid || d.String == "" {
		return time.Time{}, fmt.Errorf("%w: no market states", models.ErrNotFound)
	}
	return util.ParseDate(d.String)
}

func (s *SQLStateStore) StatesOn(ctx context.Context, date time.Time) ([]models.DailyState, error) {
	q := s.client.Rebind("SELECT " + stateColumns + " FROM market_states WHERE as_of_date = ? ORDER BY market_id")
	return s.queryStates(ctx, "states_on", q, util.FormatDate(date))
}

// StatesBetween returns one market's states in [from, to], oldest first.
func (s *SQLStateStore) StatesBetween(ctx context.Context, marketID string, from, to time.Time) ([]models.DailyState, error) {
	q := s.client.Rebind("SELECT " + stateColumns + ` FROM market_states
        WHERE market_id = ? AND as_of_date >= ? AND as_of_date <= ?
        ORDER BY as_of_date ASC`)
	return s.queryStates(ctx, "states_between", q, marketID, util.FormatDate(from), util.FormatDate(to))
}

// PreviousState returns the newest state of marketID strictly before the
// given date.
func (s *SQLStateStore) PreviousState(ctx context.Context, marketID string, before time.Time) (models.DailyState, error) {
	q := s.client.Rebind("SELECT " + stateColumns + ` FROM market_states
        WHERE market_id = ? AND as_of_date < ?
        ORDER BY as_of_date DESC LIMIT 1`)
	out, err := s.queryStates(ctx, "previous_state", q, marketID, util.FormatDate(before))
	if err != nil {
		return models.DailyState{}, err
	}
	if len(out) == 0 {
		return models.DailyState{}, fmt.Errorf("%w: no state for %s before %s", models.ErrNotFound, marketID, util.FormatDate(before))
	}
	return out[0], nil
}

// Edges returns stored edges with |weight| >= minAbsWeight, strongest first.
func (s *SQLStateStore) Edges(ctx context.Context, minAbsWeight float64) ([]models.StoredEdge, error) {
	q := s.client.Rebind(`SELECT source_id, target_id, weight, sign, updated_at FROM correlation_edges
        WHERE ABS(weight) >= ?
        ORDER BY ABS(weight) DESC, source_id ASC, target_id ASC`)
	rows, err := s.db.QueryContext(ctx, q, minAbsWeight)
	if err != nil {
		s.logErr("edges", err)
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	out := make([]models.StoredEdge, 0, 32)
	for rows.Next() {
		var (
			e    models.StoredEdge
			sign string
			ts   int64
		)
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Weight, &sign, &ts); err != nil {
			s.logErr("edges", err)
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Sign = models.Sign(sign)
		e.UpdatedAt = time.Unix(ts, 0).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// LatestSnapshot returns all states on the newest date plus every edge.
func (s *SQLStateStore) LatestSnapshot(ctx context.Context) (models.LatestSnapshot, error) {
	date, err := s.LatestDate(ctx)
	if err != nil {
		return models.LatestSnapshot{}, err
	}
	states, err := s.StatesOn(ctx, date)
	if err != nil {
		return models.LatestSnapshot{}, err
	}
	edges, err := s.Edges(ctx, 0)
	if err != nil {
		return models.LatestSnapshot{}, err
	}
	return models.LatestSnapshot{Date: date, States: states, Edges: edges}, nil
}

// DeleteStatesBefore removes state rows dated strictly before cutoff.
// Correlation edges are not touched.
func (s *SQLStateStore) DeleteStatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.client.Rebind("DELETE FROM market_states WHERE as_of_date < ?"), util.FormatDate(cutoff))
	if err != nil {
		s.logErr("delete_states", err)
		return 0, fmt.Errorf("%w: delete states: %v", models.ErrPersistenceFailure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *SQLStateStore) Health(ctx context.Context) error { return s.client.Health(ctx) }

func (s *SQLStateStore) Close() error { return s.client.Close() }

func (s *SQLStateStore) queryStates(ctx context.Context, op, q string, args ...any) ([]models.DailyState, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logErr(op, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.DailyState, 0, 16)
	for rows.Next() {
		var (
			st     models.DailyState
			date   string
			level  string
			source string
			ts     int64
		)
		if err := rows.Scan(&st.MarketID, &date, &st.MoodIndex, &level, &st.Volatility30d, &st.TrendStrength,
			&st.ReturnToday, &st.VolumeScore, &st.ClosePrice, &st.Volume, &st.ChangePct, &source, &ts); err != nil {
			s.logErr(op, err)
			return nil, fmt.Errorf("scan state: %w", err)
		}
		if st.Date, err = util.ParseDate(date); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		st.MoodLevel = models.MoodLevel(level)
		st.Source = models.Provenance(source)
		st.UpdatedAt = time.Unix(ts, 0).UTC()
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.logErr(op, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("state query ok",
			applogger.String("op", op),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *SQLStateStore) logErr(op string, err error) {
	if s.l != nil {
		s.l.Error("state store error", applogger.String("op", op), applogger.Error(err))
	}
}
