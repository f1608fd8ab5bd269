package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gta-grind-tracker/internal/model"
)

// SQLStore implements RecordStore on database/sql for every dialect.
// Writes are serialized by mu.
type SQLStore struct {
	db *sql.DB
	d  dialect
	mu sync.RWMutex
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, d: d}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Dialect returns the database kind, for logs and health output.
func (s *SQLStore) Dialect() string {
	return s.d.name
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) exec(ctx context.Context, q queryer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, q queryer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, q queryer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.d.rebind(query), args...)
}

// insertID runs an INSERT and returns the generated id.
func (s *SQLStore) insertID(ctx context.Context, q queryer, query string, args ...any) (int64, error) {
	if s.d.returning {
		var id int64
		err := s.queryRow(ctx, q, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}

	res, err := s.exec(ctx, q, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Snapshot

// Snapshot reads every table the resolver and the scheduler consume.
func (s *SQLStore) Snapshot(ctx context.Context, now time.Time) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &model.Snapshot{TakenAt: now}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if snap.Activities, err = s.listActivities(ctx, tx); err != nil {
			return err
		}
		if snap.ActiveSessions, err = s.listSessions(ctx, tx, sessionSelect+` WHERE end_time IS NULL ORDER BY start_time`); err != nil {
			return err
		}
		if snap.Cooldowns, err = s.listCooldowns(ctx, tx); err != nil {
			return err
		}
		if snap.Resupplies, err = s.listResupplies(ctx, tx); err != nil {
			return err
		}
		if snap.Production, err = s.listProduction(ctx, tx); err != nil {
			return err
		}
		if snap.ActiveSellSessions, err = s.listSellSessions(ctx, tx, sellSelect+` WHERE end_time IS NULL ORDER BY start_time`); err != nil {
			return err
		}
		if snap.LastSellSessions, err = s.listSellSessions(ctx, tx, lastSellQuery); err != nil {
			return err
		}
		snap.LastSafeCollections, err = s.listSafeCollections(ctx, tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return snap, nil
}

// ---------------------------------------------------------------------------
// Activities

const activitySelect = `SELECT id, name, category, variant, release_year, min_cooldown, resupply_min,
	max_stock, avg_payout, avg_time_min, passive, solo, boostable, tags FROM activities`

func scanActivity(row interface{ Scan(...any) error }) (model.Activity, error) {
	var (
		a                        model.Activity
		category                 string
		variant, tags            sql.NullString
		passive, solo, boostable int
	)
	err := row.Scan(&a.ID, &a.Name, &category, &variant, &a.Release, &a.MinCooldown, &a.ResupplyMin,
		&a.MaxStock, &a.AvgPayout, &a.AvgTimeMin, &passive, &solo, &boostable, &tags)
	if err != nil {
		return a, err
	}

	a.Category = model.Category(category)
	a.Variant = variant.String
	a.Passive = passive != 0
	a.Solo = solo != 0
	a.Boostable = boostable != 0
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &a.Tags); err != nil {
			return a, fmt.Errorf("failed to decode tags of %s: %w", a.ID, err)
		}
	}
	return a, nil
}

func (s *SQLStore) listActivities(ctx context.Context, q queryer) ([]model.Activity, error) {
	rows, err := s.query(ctx, q, activitySelect+` ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := []model.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// ListActivities returns the catalog in insertion order.
func (s *SQLStore) ListActivities(ctx context.Context) ([]model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listActivities(ctx, s.db)
}

// GetActivity returns one catalog entry.
func (s *SQLStore) GetActivity(ctx context.Context, id string) (*model.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := scanActivity(s.queryRow(ctx, s.db, activitySelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return &a, nil
}

// UpsertActivities inserts or replaces catalog entries. New entries are
// ordered after the existing ones.
func (s *SQLStore) UpsertActivities(ctx context.Context, activities []model.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO activities (id, name, category, variant, release_year, min_cooldown, resupply_min,
		max_stock, avg_payout, avg_time_min, passive, solo, boostable, tags, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)` +
		s.d.upsert("id", "name", "category", "variant", "release_year", "min_cooldown", "resupply_min",
			"max_stock", "avg_payout", "avg_time_min", "passive", "solo", "boostable", "tags")

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var next int
		if err := s.queryRow(ctx, tx, `SELECT COALESCE(MAX(sort_order), 0) FROM activities`).Scan(&next); err != nil {
			return fmt.Errorf("failed to read catalog order: %w", err)
		}

		for _, a := range activities {
			tags, err := json.Marshal(a.Tags)
			if err != nil {
				return fmt.Errorf("failed to encode tags of %s: %w", a.ID, err)
			}
			if len(a.Tags) == 0 {
				tags = nil
			}
			next++

			_, err = s.exec(ctx, tx, query, a.ID, a.Name, string(a.Category), a.Variant, a.Release, a.MinCooldown,
				a.ResupplyMin, a.MaxStock, a.AvgPayout, a.AvgTimeMin, boolInt(a.Passive), boolInt(a.Solo),
				boolInt(a.Boostable), nullString(tags), next)
			if err != nil {
				return fmt.Errorf("failed to upsert activity %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

// DeleteActivity removes a catalog entry and all of its records.
func (s *SQLStore) DeleteActivity(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, `DELETE FROM activities WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete activity: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return s.resetActivity(ctx, tx, id)
	})
}

// ---------------------------------------------------------------------------
// Sessions

const sessionSelect = `SELECT id, activity_id, start_time, end_time, money_earned, duration_minutes FROM sessions`

func scanSession(row interface{ Scan(...any) error }) (model.Session, error) {
	var (
		ss       model.Session
		start    int64
		end      sql.NullInt64
		money    sql.NullInt64
		duration sql.NullFloat64
	)
	if err := row.Scan(&ss.ID, &ss.ActivityID, &start, &end, &money, &duration); err != nil {
		return ss, err
	}
	ss.StartTime = fromMillis(start)
	ss.EndTime = timePtr(end)
	ss.MoneyEarned = int64Ptr(money)
	ss.DurationMinutes = floatPtr(duration)
	return ss, nil
}

func (s *SQLStore) listSessions(ctx context.Context, q queryer, query string, args ...any) ([]model.Session, error) {
	rows, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []model.Session{}
	for rows.Next() {
		ss, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}

// ListActiveSessions returns every open session.
func (s *SQLStore) ListActiveSessions(ctx context.Context) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSessions(ctx, s.db, sessionSelect+` WHERE end_time IS NULL ORDER BY start_time`)
}

// ListRecentSessions returns the newest sessions first.
func (s *SQLStore) ListRecentSessions(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSessions(ctx, s.db, sessionSelect+` ORDER BY start_time DESC, id DESC LIMIT ?`, limit)
}

// StartSession opens a session.
func (s *SQLStore) StartSession(ctx context.Context, activityID string, start time.Time) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created *model.Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var open int
		if err := s.queryRow(ctx, tx, `SELECT COUNT(*) FROM sessions WHERE activity_id = ? AND end_time IS NULL`, activityID).Scan(&open); err != nil {
			return fmt.Errorf("failed to check open sessions: %w", err)
		}
		if open > 0 {
			return ErrAlreadyActive
		}

		id, err := s.insertID(ctx, tx, `INSERT INTO sessions (activity_id, start_time) VALUES (?, ?)`, activityID, toMillis(start))
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		created = &model.Session{ID: id, ActivityID: activityID, StartTime: truncMillis(start)}
		return nil
	})
	return created, err
}

// StopSession closes the open session of an activity.
func (s *SQLStore) StopSession(ctx context.Context, activityID string, end time.Time, money int64) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var closed *model.Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ss, err := scanSession(s.queryRow(ctx, tx, sessionSelect+` WHERE activity_id = ? AND end_time IS NULL ORDER BY start_time DESC LIMIT 1`, activityID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to find open session: %w", err)
		}

		minutes := model.DurationMinutes(ss.StartTime, end)
		if _, err := s.exec(ctx, tx, `UPDATE sessions SET end_time = ?, money_earned = ?, duration_minutes = ? WHERE id = ?`,
			toMillis(end), money, minutes, ss.ID); err != nil {
			return fmt.Errorf("failed to stop session: %w", err)
		}
		if err := s.addStats(ctx, tx, activityID, money, minutes, end); err != nil {
			return err
		}

		e := truncMillis(end)
		ss.EndTime = &e
		ss.MoneyEarned = &money
		ss.DurationMinutes = &minutes
		closed = &ss
		return nil
	})
	return closed, err
}

// BulkCreateSessions imports sessions. Completed sessions are rolled into
// the stats of their activity.
func (s *SQLStore) BulkCreateSessions(ctx context.Context, sessions []model.Session) ([]model.Session, error) {
	if len(sessions) == 0 {
		return []model.Session{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]model.Session, 0, len(sessions))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, ss := range sessions {
			if ss.EndTime != nil && ss.DurationMinutes == nil {
				m := model.DurationMinutes(ss.StartTime, *ss.EndTime)
				ss.DurationMinutes = &m
			}

			id, err := s.insertID(ctx, tx,
				`INSERT INTO sessions (activity_id, start_time, end_time, money_earned, duration_minutes) VALUES (?, ?, ?, ?, ?)`,
				ss.ActivityID, toMillis(ss.StartTime), nullMillis(ss.EndTime), nullInt64(ss.MoneyEarned), nullFloat(ss.DurationMinutes))
			if err != nil {
				return fmt.Errorf("failed to import session for %s: %w", ss.ActivityID, err)
			}
			ss.ID = id

			if ss.EndTime != nil {
				var money int64
				if ss.MoneyEarned != nil {
					money = *ss.MoneyEarned
				}
				if err := s.addStats(ctx, tx, ss.ActivityID, money, *ss.DurationMinutes, *ss.EndTime); err != nil {
					return err
				}
			}
			created = append(created, ss)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ---------------------------------------------------------------------------
// Cooldowns and resupplies

func (s *SQLStore) listCooldowns(ctx context.Context, q queryer) ([]model.Cooldown, error) {
	rows, err := s.query(ctx, q, `SELECT activity_id, end_time FROM cooldowns ORDER BY end_time`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cooldowns: %w", err)
	}
	defer rows.Close()

	cooldowns := []model.Cooldown{}
	for rows.Next() {
		var c model.Cooldown
		var end int64
		if err := rows.Scan(&c.ActivityID, &end); err != nil {
			return nil, fmt.Errorf("failed to scan cooldown: %w", err)
		}
		c.EndTime = fromMillis(end)
		cooldowns = append(cooldowns, c)
	}
	return cooldowns, rows.Err()
}

func (s *SQLStore) listResupplies(ctx context.Context, q queryer) ([]model.Resupply, error) {
	rows, err := s.query(ctx, q, `SELECT activity_id, end_time FROM resupplies ORDER BY end_time`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resupplies: %w", err)
	}
	defer rows.Close()

	resupplies := []model.Resupply{}
	for rows.Next() {
		var r model.Resupply
		var end int64
		if err := rows.Scan(&r.ActivityID, &end); err != nil {
			return nil, fmt.Errorf("failed to scan resupply: %w", err)
		}
		r.EndTime = fromMillis(end)
		resupplies = append(resupplies, r)
	}
	return resupplies, rows.Err()
}

// ListCooldowns returns every cooldown row, expired rows included.
func (s *SQLStore) ListCooldowns(ctx context.Context) ([]model.Cooldown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listCooldowns(ctx, s.db)
}

// StartCooldown creates or replaces the cooldown of an activity.
func (s *SQLStore) StartCooldown(ctx context.Context, activityID string, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.exec(ctx, s.db, `INSERT INTO cooldowns (activity_id, end_time) VALUES (?, ?)`+s.d.upsert("activity_id", "end_time"),
		activityID, toMillis(end))
	if err != nil {
		return fmt.Errorf("failed to start cooldown: %w", err)
	}
	return nil
}

// ClearCooldown removes the cooldown of an activity.
func (s *SQLStore) ClearCooldown(ctx context.Context, activityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.exec(ctx, s.db, `DELETE FROM cooldowns WHERE activity_id = ?`, activityID); err != nil {
		return fmt.Errorf("failed to clear cooldown: %w", err)
	}
	return nil
}

// PruneCooldowns deletes expired cooldowns.
func (s *SQLStore) PruneCooldowns(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.exec(ctx, s.db, `DELETE FROM cooldowns WHERE end_time <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("failed to prune cooldowns: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListResupplies returns every resupply row, expired rows included.
func (s *SQLStore) ListResupplies(ctx context.Context) ([]model.Resupply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listResupplies(ctx, s.db)
}

// StartResupply creates or replaces the resupply of an activity.
func (s *SQLStore) StartResupply(ctx context.Context, activityID string, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.exec(ctx, s.db, `INSERT INTO resupplies (activity_id, end_time) VALUES (?, ?)`+s.d.upsert("activity_id", "end_time"),
		activityID, toMillis(end))
	if err != nil {
		return fmt.Errorf("failed to start resupply: %w", err)
	}
	return nil
}

// ClearResupply removes the resupply of an activity without adding stock.
func (s *SQLStore) ClearResupply(ctx context.Context, activityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.exec(ctx, s.db, `DELETE FROM resupplies WHERE activity_id = ?`, activityID); err != nil {
		return fmt.Errorf("failed to clear resupply: %w", err)
	}
	return nil
}

// CompleteResupplies turns expired resupplies into stock.
func (s *SQLStore) CompleteResupplies(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completed []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := s.query(ctx, tx, `SELECT r.activity_id, r.end_time, COALESCE(a.max_stock, 0)
			FROM resupplies r LEFT JOIN activities a ON a.id = r.activity_id
			WHERE r.end_time <= ? ORDER BY r.end_time`, toMillis(now))
		if err != nil {
			return fmt.Errorf("failed to list expired resupplies: %w", err)
		}

		type due struct {
			activityID string
			end        int64
			capacity   int
		}
		var expired []due
		for rows.Next() {
			var d due
			if err := rows.Scan(&d.activityID, &d.end, &d.capacity); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan expired resupply: %w", err)
			}
			if d.capacity <= 0 {
				d.capacity = model.DefaultMaxStock
			}
			expired = append(expired, d)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, d := range expired {
			res, err := s.exec(ctx, tx, `DELETE FROM resupplies WHERE activity_id = ? AND end_time = ?`, d.activityID, d.end)
			if err != nil {
				return fmt.Errorf("failed to delete resupply of %s: %w", d.activityID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}
			at := fromMillis(d.end)
			if _, err := s.incrementStock(ctx, tx, d.activityID, d.capacity, at); err != nil {
				return err
			}
			completed = append(completed, d.activityID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// ---------------------------------------------------------------------------
// Production

func (s *SQLStore) listProduction(ctx context.Context, q queryer) ([]model.ProductionState, error) {
	rows, err := s.query(ctx, q, `SELECT activity_id, current_stock, last_resupply_time FROM production ORDER BY activity_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list production: %w", err)
	}
	defer rows.Close()

	production := []model.ProductionState{}
	for rows.Next() {
		var p model.ProductionState
		var last sql.NullInt64
		if err := rows.Scan(&p.ActivityID, &p.CurrentStock, &last); err != nil {
			return nil, fmt.Errorf("failed to scan production: %w", err)
		}
		p.LastResupplyTime = timePtr(last)
		production = append(production, p)
	}
	return production, rows.Err()
}

// ListProduction returns the stock of every passive business.
func (s *SQLStore) ListProduction(ctx context.Context) ([]model.ProductionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProduction(ctx, s.db)
}

// GetProduction returns the stock of one activity.
func (s *SQLStore) GetProduction(ctx context.Context, activityID string) (*model.ProductionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := model.ProductionState{ActivityID: activityID}
	var last sql.NullInt64
	err := s.queryRow(ctx, s.db, `SELECT current_stock, last_resupply_time FROM production WHERE activity_id = ?`, activityID).
		Scan(&p.CurrentStock, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get production: %w", err)
	}
	p.LastResupplyTime = timePtr(last)
	return &p, nil
}

func (s *SQLStore) incrementStock(ctx context.Context, q queryer, activityID string, capacity int, at time.Time) (int, error) {
	var stock int
	err := s.queryRow(ctx, q, `SELECT current_stock FROM production WHERE activity_id = ?`, activityID).Scan(&stock)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read stock: %w", err)
	}

	stock++
	if stock > capacity {
		stock = capacity
	}

	_, err = s.exec(ctx, q, `INSERT INTO production (activity_id, current_stock, last_resupply_time) VALUES (?, ?, ?)`+
		s.d.upsert("activity_id", "current_stock", "last_resupply_time"), activityID, stock, toMillis(at))
	if err != nil {
		return 0, fmt.Errorf("failed to update stock: %w", err)
	}
	return stock, nil
}

// IncrementStock adds one unit of stock, capped at capacity.
func (s *SQLStore) IncrementStock(ctx context.Context, activityID string, capacity int, at time.Time) (int, error) {
	if capacity <= 0 {
		capacity = model.DefaultMaxStock
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stock int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		stock, err = s.incrementStock(ctx, tx, activityID, capacity, at)
		return err
	})
	return stock, err
}

// SetProduction overwrites the stock of an activity.
func (s *SQLStore) SetProduction(ctx context.Context, activityID string, stock int, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.exec(ctx, s.db, `INSERT INTO production (activity_id, current_stock, last_resupply_time) VALUES (?, ?, ?)`+
		s.d.upsert("activity_id", "current_stock", "last_resupply_time"), activityID, stock, nullMillis(at))
	if err != nil {
		return fmt.Errorf("failed to set production: %w", err)
	}
	return nil
}

// ClearProduction empties the stock of an activity.
func (s *SQLStore) ClearProduction(ctx context.Context, activityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.exec(ctx, s.db, `UPDATE production SET current_stock = 0 WHERE activity_id = ?`, activityID); err != nil {
		return fmt.Errorf("failed to clear production: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sell sessions

const sellSelect = `SELECT id, activity_id, start_time, end_time, money_earned, active_minutes FROM sell_sessions`

const lastSellQuery = sellSelect + ` s WHERE s.end_time IS NOT NULL AND s.end_time = (
	SELECT MAX(x.end_time) FROM sell_sessions x WHERE x.activity_id = s.activity_id AND x.end_time IS NOT NULL
) ORDER BY s.activity_id`

func scanSellSession(row interface{ Scan(...any) error }) (model.SellSession, error) {
	var (
		ss     model.SellSession
		start  int64
		end    sql.NullInt64
		money  sql.NullInt64
		active sql.NullFloat64
	)
	if err := row.Scan(&ss.ID, &ss.ActivityID, &start, &end, &money, &active); err != nil {
		return ss, err
	}
	ss.StartTime = fromMillis(start)
	ss.EndTime = timePtr(end)
	ss.MoneyEarned = int64Ptr(money)
	ss.ActiveMinutes = floatPtr(active)
	return ss, nil
}

func (s *SQLStore) listSellSessions(ctx context.Context, q queryer, query string, args ...any) ([]model.SellSession, error) {
	rows, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sell sessions: %w", err)
	}
	defer rows.Close()

	sessions := []model.SellSession{}
	for rows.Next() {
		ss, err := scanSellSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sell session: %w", err)
		}
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}

// ListActiveSellSessions returns every open sell session.
func (s *SQLStore) ListActiveSellSessions(ctx context.Context) ([]model.SellSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSellSessions(ctx, s.db, sellSelect+` WHERE end_time IS NULL ORDER BY start_time`)
}

// ListLastSellSessions returns the latest completed sell of each activity.
func (s *SQLStore) ListLastSellSessions(ctx context.Context) ([]model.SellSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSellSessions(ctx, s.db, lastSellQuery)
}

// StartSellSession opens a sell session.
func (s *SQLStore) StartSellSession(ctx context.Context, activityID string, start time.Time) (*model.SellSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created *model.SellSession
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var open int
		if err := s.queryRow(ctx, tx, `SELECT COUNT(*) FROM sell_sessions WHERE activity_id = ? AND end_time IS NULL`, activityID).Scan(&open); err != nil {
			return fmt.Errorf("failed to check open sell sessions: %w", err)
		}
		if open > 0 {
			return ErrAlreadyActive
		}

		id, err := s.insertID(ctx, tx, `INSERT INTO sell_sessions (activity_id, start_time) VALUES (?, ?)`, activityID, toMillis(start))
		if err != nil {
			return fmt.Errorf("failed to start sell session: %w", err)
		}
		created = &model.SellSession{ID: id, ActivityID: activityID, StartTime: truncMillis(start)}
		return nil
	})
	return created, err
}

// StopSellSession closes the open sell session of an activity.
func (s *SQLStore) StopSellSession(ctx context.Context, activityID string, end time.Time, money int64, activeMinutes float64) (*model.SellSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var closed *model.SellSession
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ss, err := scanSellSession(s.queryRow(ctx, tx, sellSelect+` WHERE activity_id = ? AND end_time IS NULL ORDER BY start_time DESC LIMIT 1`, activityID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to find open sell session: %w", err)
		}

		if _, err := s.exec(ctx, tx, `UPDATE sell_sessions SET end_time = ?, money_earned = ?, active_minutes = ? WHERE id = ?`,
			toMillis(end), money, activeMinutes, ss.ID); err != nil {
			return fmt.Errorf("failed to stop sell session: %w", err)
		}
		if _, err := s.exec(ctx, tx, `UPDATE production SET current_stock = 0 WHERE activity_id = ?`, activityID); err != nil {
			return fmt.Errorf("failed to clear production: %w", err)
		}
		if err := s.addStats(ctx, tx, activityID, money, activeMinutes, end); err != nil {
			return err
		}

		e := truncMillis(end)
		ss.EndTime = &e
		ss.MoneyEarned = &money
		ss.ActiveMinutes = &activeMinutes
		closed = &ss
		return nil
	})
	return closed, err
}

// ---------------------------------------------------------------------------
// Safes

func (s *SQLStore) listSafeCollections(ctx context.Context, q queryer) ([]model.SafeCollection, error) {
	rows, err := s.query(ctx, q, `SELECT c.activity_id, c.collected_at, c.money_collected FROM safe_collections c
		WHERE c.collected_at = (SELECT MAX(x.collected_at) FROM safe_collections x WHERE x.activity_id = c.activity_id)
		ORDER BY c.activity_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list safe collections: %w", err)
	}
	defer rows.Close()

	collections := []model.SafeCollection{}
	for rows.Next() {
		var c model.SafeCollection
		var at int64
		if err := rows.Scan(&c.ActivityID, &at, &c.MoneyCollected); err != nil {
			return nil, fmt.Errorf("failed to scan safe collection: %w", err)
		}
		c.CollectedAt = fromMillis(at)
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// ListLastSafeCollections returns the latest collection of each safe.
func (s *SQLStore) ListLastSafeCollections(ctx context.Context) ([]model.SafeCollection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSafeCollections(ctx, s.db)
}

// CollectSafe records a collection and credits it to stats.
func (s *SQLStore) CollectSafe(ctx context.Context, activityID string, at time.Time, money int64) (*model.SafeCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `INSERT INTO safe_collections (activity_id, collected_at, money_collected) VALUES (?, ?, ?)`,
			activityID, toMillis(at), money); err != nil {
			return fmt.Errorf("failed to record safe collection: %w", err)
		}
		return s.addStats(ctx, tx, activityID, money, model.SafeCollectMinutes, at)
	})
	if err != nil {
		return nil, err
	}
	return &model.SafeCollection{ActivityID: activityID, CollectedAt: truncMillis(at), MoneyCollected: money}, nil
}

// ---------------------------------------------------------------------------
// Stats

const statsSelect = `SELECT activity_id, total_money, total_time, session_count, avg_dpm, last_session FROM activity_stats`

func scanStats(row interface{ Scan(...any) error }) (model.ActivityStats, error) {
	var st model.ActivityStats
	var last sql.NullInt64
	if err := row.Scan(&st.ActivityID, &st.TotalMoney, &st.TotalTime, &st.SessionCount, &st.AvgDPM, &last); err != nil {
		return st, err
	}
	st.LastSession = timePtr(last)
	return st, nil
}

func (s *SQLStore) addStats(ctx context.Context, q queryer, activityID string, money int64, minutes float64, at time.Time) error {
	st, err := scanStats(s.queryRow(ctx, q, statsSelect+` WHERE activity_id = ?`, activityID))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	st.ActivityID = activityID
	st.Add(money, minutes, at)

	_, err = s.exec(ctx, q, `INSERT INTO activity_stats (activity_id, total_money, total_time, session_count, avg_dpm, last_session)
		VALUES (?, ?, ?, ?, ?, ?)`+s.d.upsert("activity_id", "total_money", "total_time", "session_count", "avg_dpm", "last_session"),
		activityID, st.TotalMoney, st.TotalTime, st.SessionCount, st.AvgDPM, nullMillis(st.LastSession))
	if err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}
	return nil
}

// ListStats returns the rollup of every activity with recorded runs.
func (s *SQLStore) ListStats(ctx context.Context) ([]model.ActivityStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.query(ctx, s.db, statsSelect+` ORDER BY avg_dpm DESC, activity_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stats: %w", err)
	}
	defer rows.Close()

	stats := []model.ActivityStats{}
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// GetStats returns the rollup of one activity.
func (s *SQLStore) GetStats(ctx context.Context, activityID string) (*model.ActivityStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := scanStats(s.queryRow(ctx, s.db, statsSelect+` WHERE activity_id = ?`, activityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &st, nil
}

// ---------------------------------------------------------------------------
// Reset

var recordTables = []string{"activity_stats", "sessions", "sell_sessions", "cooldowns", "resupplies", "production", "safe_collections"}

func (s *SQLStore) resetActivity(ctx context.Context, q queryer, activityID string) error {
	for _, table := range recordTables {
		if _, err := s.exec(ctx, q, `DELETE FROM `+table+` WHERE activity_id = ?`, activityID); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// ResetActivity removes every record of one activity.
func (s *SQLStore) ResetActivity(ctx context.Context, activityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.resetActivity(ctx, tx, activityID)
	})
}

// ResetAll removes every record of every activity.
func (s *SQLStore) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range recordTables {
			if _, err := s.exec(ctx, tx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("failed to reset %s: %w", table, err)
			}
		}
		return nil
	})
	if err == nil {
		log.Printf("[SQLStore] Reset all records (%s)", s.d.name)
	}
	return err
}

// ---------------------------------------------------------------------------
// Column helpers

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func truncMillis(t time.Time) time.Time { return fromMillis(toMillis(t)) }

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ RecordStore = (*SQLStore)(nil)
