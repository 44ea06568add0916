package adapters

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"stardate-formula/internal/ports"
	"stardate-formula/internal/types"
)

// historyTimeLayout has a fixed width so completed_at sorts as text.
const historyTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const historySchema = `
CREATE TABLE IF NOT EXISTS installs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    receipt_id TEXT,
    name TEXT NOT NULL,
    version TEXT,
    prefix TEXT,
    sha256 TEXT,
    status TEXT NOT NULL,
    error TEXT,
    completed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_installs_name ON installs(name);
CREATE INDEX IF NOT EXISTS idx_installs_completed ON installs(completed_at);
`

// HistorySQLiteAdapter keeps the install ledger in a SQLite database.
// Use ":memory:" for an in-memory ledger.
type HistorySQLiteAdapter struct {
	db *sql.DB
}

func NewHistorySQLiteAdapter(dbPath string) (*HistorySQLiteAdapter, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create state directory").
				WithCause(err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, historyError("failed to open history database", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, historyError("failed to enable WAL mode", err)
		}
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, historyError("failed to create history schema", err)
	}
	log.Debug().Str("path", dbPath).Msg("history database opened")
	return &HistorySQLiteAdapter{db: db}, nil
}

func (a *HistorySQLiteAdapter) Record(ctx context.Context, entry types.HistoryEntry) error {
	completedAt := entry.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	query := `
		INSERT INTO installs
		(receipt_id, name, version, prefix, sha256, status, error, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := a.db.ExecContext(ctx, query,
		entry.ReceiptID,
		entry.Name,
		entry.Version,
		entry.Prefix,
		entry.SHA256,
		string(entry.Status),
		entry.Error,
		completedAt.UTC().Format(historyTimeLayout),
	)
	if err != nil {
		return historyError("failed to record install "+entry.Name, err)
	}
	return nil
}

// List returns the newest entries first.  An empty name lists every
// package; a non-positive limit returns everything.
func (a *HistorySQLiteAdapter) List(ctx context.Context, name string, limit int) ([]types.HistoryEntry, error) {
	query := `
		SELECT id, receipt_id, name, version, prefix, sha256, status, error, completed_at
		FROM installs
		WHERE (? = '' OR name = ?)
		ORDER BY completed_at DESC, id DESC
	`
	args := []any{name, name}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, historyError("failed to query install history", err)
	}
	defer rows.Close()

	var entries []types.HistoryEntry
	for rows.Next() {
		var entry types.HistoryEntry
		var receiptID, version, prefix, sha, errText sql.NullString
		var status, completedAt string
		if err := rows.Scan(&entry.ID, &receiptID, &entry.Name, &version, &prefix, &sha, &status, &errText, &completedAt); err != nil {
			return nil, historyError("failed to scan install history", err)
		}
		entry.ReceiptID = receiptID.String
		entry.Version = version.String
		entry.Prefix = prefix.String
		entry.SHA256 = sha.String
		entry.Status = types.InstallStatus(status)
		entry.Error = errText.String
		entry.CompletedAt, err = time.Parse(historyTimeLayout, completedAt)
		if err != nil {
			return nil, historyError("failed to parse completed_at for "+entry.Name, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, historyError("failed to read install history", err)
	}
	return entries, nil
}

func (a *HistorySQLiteAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func historyError(msg string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(msg).
		WithCause(err)
}

var _ ports.HistoryPort = (*HistorySQLiteAdapter)(nil)
