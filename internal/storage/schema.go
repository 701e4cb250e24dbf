package storage

// Relational schema shared with the broader system. Intentionally plain SQL,
// no ORM. signal_state is created for the deferred signal engine; this
// pipeline never writes it.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id     TEXT PRIMARY KEY,
		asof_date  TEXT NOT NULL,
		created_at TEXT NOT NULL,
		universe   TEXT NOT NULL,
		source_dir TEXT,
		notes      TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`,
	`CREATE TABLE IF NOT EXISTS market_daily (
		asof_date TEXT NOT NULL,
		asset     TEXT NOT NULL,
		close     REAL NOT NULL,
		ret_1d    REAL,
		PRIMARY KEY (asof_date, asset)
	);`,
	`CREATE TABLE IF NOT EXISTS baseline_equity (
		asof_date TEXT PRIMARY KEY,
		equity    REAL NOT NULL,
		cash      REAL NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS baseline_positions (
		asof_date TEXT NOT NULL,
		asset     TEXT NOT NULL,
		qty       REAL NOT NULL,
		value     REAL NOT NULL,
		PRIMARY KEY (asof_date, asset)
	);`,
	`CREATE TABLE IF NOT EXISTS baseline_trades (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		asof_date TEXT NOT NULL,
		asset     TEXT NOT NULL,
		side      TEXT NOT NULL,
		qty       REAL NOT NULL,
		price     REAL NOT NULL,
		notional  REAL NOT NULL,
		fee_total REAL NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_trades_asof_date ON baseline_trades(asof_date);`,
	`CREATE TABLE IF NOT EXISTS signal_state (
		asof_date TEXT NOT NULL,
		asset     TEXT NOT NULL,
		state     TEXT NOT NULL,
		reason    TEXT,
		score     REAL,
		PRIMARY KEY (asof_date, asset)
	);`,
}
