package repository

import (
	"strconv"
	"strings"
)

// dialect captures the SQL differences between the supported databases.
// Queries are written with ? placeholders and rebound per dialect.
type dialect struct {
	name      string
	autoID    string
	float     string
	returning bool // INSERT ... RETURNING id instead of LastInsertId
	indexes   bool // CREATE INDEX IF NOT EXISTS is supported
	dollar    bool // $1, $2 placeholders
	mysqlUp   bool // ON DUPLICATE KEY UPDATE instead of ON CONFLICT
}

var (
	sqliteDialect = dialect{
		name:    "sqlite",
		autoID:  "INTEGER PRIMARY KEY AUTOINCREMENT",
		float:   "REAL",
		indexes: true,
	}
	postgresDialect = dialect{
		name:      "postgres",
		autoID:    "BIGSERIAL PRIMARY KEY",
		float:     "DOUBLE PRECISION",
		returning: true,
		indexes:   true,
		dollar:    true,
	}
	mysqlDialect = dialect{
		name:    "mysql",
		autoID:  "BIGINT AUTO_INCREMENT PRIMARY KEY",
		float:   "DOUBLE",
		mysqlUp: true,
	}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.dollar {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// upsert returns the conflict clause that updates cols when a row with
// the same key already exists.
func (d dialect) upsert(key string, cols ...string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		if d.mysqlUp {
			sets[i] = c + " = VALUES(" + c + ")"
		} else {
			sets[i] = c + " = excluded." + c
		}
	}

	if d.mysqlUp {
		return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	return " ON CONFLICT (" + key + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

// schema returns the DDL statements, one per element.
func (d dialect) schema() []string {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS activities (
			id VARCHAR(191) PRIMARY KEY,
			name TEXT NOT NULL,
			category VARCHAR(64) NOT NULL,
			variant TEXT,
			release_year INTEGER NOT NULL DEFAULT 0,
			min_cooldown INTEGER NOT NULL DEFAULT 0,
			resupply_min INTEGER NOT NULL DEFAULT 0,
			max_stock INTEGER NOT NULL DEFAULT 0,
			avg_payout BIGINT NOT NULL DEFAULT 0,
			avg_time_min ` + d.float + ` NOT NULL DEFAULT 0,
			passive INTEGER NOT NULL DEFAULT 0,
			solo INTEGER NOT NULL DEFAULT 0,
			boostable INTEGER NOT NULL DEFAULT 0,
			tags TEXT,
			sort_order INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id ` + d.autoID + `,
			activity_id VARCHAR(191) NOT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT NULL,
			money_earned BIGINT NULL,
			duration_minutes ` + d.float + ` NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cooldowns (
			activity_id VARCHAR(191) PRIMARY KEY,
			end_time BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS resupplies (
			activity_id VARCHAR(191) PRIMARY KEY,
			end_time BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS production (
			activity_id VARCHAR(191) PRIMARY KEY,
			current_stock INTEGER NOT NULL DEFAULT 0,
			last_resupply_time BIGINT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sell_sessions (
			id ` + d.autoID + `,
			activity_id VARCHAR(191) NOT NULL,
			start_time BIGINT NOT NULL,
			end_time BIGINT NULL,
			money_earned BIGINT NULL,
			active_minutes ` + d.float + ` NULL
		)`,
		`CREATE TABLE IF NOT EXISTS safe_collections (
			id ` + d.autoID + `,
			activity_id VARCHAR(191) NOT NULL,
			collected_at BIGINT NOT NULL,
			money_collected BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS activity_stats (
			activity_id VARCHAR(191) PRIMARY KEY,
			total_money BIGINT NOT NULL DEFAULT 0,
			total_time ` + d.float + ` NOT NULL DEFAULT 0,
			session_count INTEGER NOT NULL DEFAULT 0,
			avg_dpm ` + d.float + ` NOT NULL DEFAULT 0,
			last_session BIGINT NULL
		)`,
	}

	if d.indexes {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(activity_id, end_time)`,
			`CREATE INDEX IF NOT EXISTS idx_sell_sessions_activity ON sell_sessions(activity_id, end_time)`,
			`CREATE INDEX IF NOT EXISTS idx_safe_collections_activity ON safe_collections(activity_id, collected_at)`,
		)
	}
	return stmts
}
