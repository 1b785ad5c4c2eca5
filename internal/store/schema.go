package store

// Amounts are stored as exact decimal text in SQLite and NUMERIC in PostgreSQL;
// arithmetic on them happens in Go, never in SQL.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS enterprises (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		chart TEXT NOT NULL CHECK (chart IN ('FR', 'OHADA'))
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		enterprise_id INTEGER NOT NULL REFERENCES enterprises(id),
		number TEXT NOT NULL,
		label TEXT NOT NULL,
		nature TEXT NOT NULL,
		class INTEGER NOT NULL,
		parent_id INTEGER REFERENCES accounts(id),
		accepts_children INTEGER NOT NULL DEFAULT 0,
		opening_debit TEXT NOT NULL DEFAULT '0',
		opening_credit TEXT NOT NULL DEFAULT '0',
		debit TEXT NOT NULL DEFAULT '0',
		credit TEXT NOT NULL DEFAULT '0',
		active INTEGER NOT NULL DEFAULT 1,
		UNIQUE (enterprise_id, number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_parent ON accounts(parent_id)`,
	`CREATE TABLE IF NOT EXISTS periods (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		enterprise_id INTEGER NOT NULL REFERENCES enterprises(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entry_sequences (
		enterprise_id INTEGER NOT NULL REFERENCES enterprises(id),
		journal TEXT NOT NULL,
		last_value INTEGER NOT NULL,
		last_year INTEGER NOT NULL,
		PRIMARY KEY (enterprise_id, journal)
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		enterprise_id INTEGER NOT NULL REFERENCES enterprises(id),
		period_id INTEGER NOT NULL REFERENCES periods(id),
		number TEXT NOT NULL,
		journal TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		label TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		validated_by TEXT NOT NULL DEFAULT '',
		validated_at TEXT,
		UNIQUE (enterprise_id, number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_range ON entries(enterprise_id, entry_date, status)`,
	`CREATE TABLE IF NOT EXISTS entry_lines (
		id TEXT PRIMARY KEY,
		entry_id TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		label TEXT NOT NULL DEFAULT '',
		debit TEXT NOT NULL,
		credit TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entry_lines_entry ON entry_lines(entry_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entry_lines_account ON entry_lines(account_id)`,
	`CREATE TABLE IF NOT EXISTS account_balances (
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		period_id INTEGER NOT NULL REFERENCES periods(id),
		debit TEXT NOT NULL,
		credit TEXT NOT NULL,
		PRIMARY KEY (account_id, period_id)
	)`,
	`CREATE TABLE IF NOT EXISTS applied_entries (
		entry_id TEXT PRIMARY KEY REFERENCES entries(id),
		applied_at TEXT NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS enterprises (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		chart TEXT NOT NULL CHECK (chart IN ('FR', 'OHADA'))
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		enterprise_id BIGINT NOT NULL REFERENCES enterprises(id),
		number TEXT NOT NULL,
		label TEXT NOT NULL,
		nature TEXT NOT NULL,
		class INTEGER NOT NULL,
		parent_id BIGINT REFERENCES accounts(id),
		accepts_children BOOLEAN NOT NULL DEFAULT FALSE,
		opening_debit NUMERIC NOT NULL DEFAULT 0,
		opening_credit NUMERIC NOT NULL DEFAULT 0,
		debit NUMERIC NOT NULL DEFAULT 0,
		credit NUMERIC NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (enterprise_id, number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_parent ON accounts(parent_id)`,
	`CREATE TABLE IF NOT EXISTS periods (
		id BIGSERIAL PRIMARY KEY,
		enterprise_id BIGINT NOT NULL REFERENCES enterprises(id),
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		status TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entry_sequences (
		enterprise_id BIGINT NOT NULL REFERENCES enterprises(id),
		journal TEXT NOT NULL,
		last_value BIGINT NOT NULL,
		last_year INTEGER NOT NULL,
		PRIMARY KEY (enterprise_id, journal)
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		id UUID PRIMARY KEY,
		enterprise_id BIGINT NOT NULL REFERENCES enterprises(id),
		period_id BIGINT NOT NULL REFERENCES periods(id),
		number TEXT NOT NULL,
		journal TEXT NOT NULL,
		entry_date DATE NOT NULL,
		label TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK (status IN ('DRAFT', 'VALIDATED', 'CLOSED')),
		created_by TEXT NOT NULL,
		validated_by TEXT NOT NULL DEFAULT '',
		validated_at TIMESTAMPTZ,
		UNIQUE (enterprise_id, number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_range ON entries(enterprise_id, entry_date, status)`,
	`CREATE TABLE IF NOT EXISTS entry_lines (
		id UUID PRIMARY KEY,
		entry_id UUID NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		label TEXT NOT NULL DEFAULT '',
		debit NUMERIC NOT NULL CHECK (debit >= 0),
		credit NUMERIC NOT NULL CHECK (credit >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entry_lines_entry ON entry_lines(entry_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entry_lines_account ON entry_lines(account_id)`,
	`CREATE TABLE IF NOT EXISTS account_balances (
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		period_id BIGINT NOT NULL REFERENCES periods(id),
		debit NUMERIC NOT NULL,
		credit NUMERIC NOT NULL,
		PRIMARY KEY (account_id, period_id)
	)`,
	`CREATE TABLE IF NOT EXISTS applied_entries (
		entry_id UUID PRIMARY KEY REFERENCES entries(id),
		applied_at TIMESTAMPTZ NOT NULL
	)`,
}
