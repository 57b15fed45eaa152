package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/simulator"
	"github.com/funnyzak/mockflow/pkg/endpoint"

	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName = "sqlite"
)

type sqliteStore struct {
	db    *sql.DB
	limit int
	log   logger.Logger
}

func newSQLiteStore(cfg *config.StorageConfig, log logger.Logger) (Store, error) {
	path := cfg.Path
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("prepare sqlite directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(absPath))
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %s: %w", stmt, err)
		}
	}

	store := &sqliteStore{db: db, limit: historyLimit(cfg.HistoryLimit), log: log}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("SQLite store opened", "path", absPath, "history_limit", store.limit)
	return store, nil
}

func (s *sqliteStore) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS folders (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS endpoints (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    folder_id TEXT,
    name TEXT NOT NULL,
    method TEXT NOT NULL,
    path TEXT NOT NULL,
    definition_json TEXT NOT NULL,
    favorite INTEGER NOT NULL DEFAULT 0,
    updated_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_endpoints_folder ON endpoints(folder_id);
CREATE INDEX IF NOT EXISTS idx_endpoints_route ON endpoints(method, path);

CREATE TABLE IF NOT EXISTS history (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    endpoint TEXT NOT NULL,
    endpoint_id TEXT,
    source TEXT NOT NULL,
    method TEXT NOT NULL,
    status INTEGER NOT NULL,
    timestamp_ns INTEGER NOT NULL,
    data_json TEXT,
    latency_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_history_ts ON history(timestamp_ns DESC);
`
	_, err := s.db.Exec(schema)
	return err
}

func (s *sqliteStore) LoadWorkspace(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Endpoints: []*endpoint.Endpoint{},
		Folders:   []endpoint.Folder{},
		Favorites: []string{},
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM folders ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query folders: %w", err)
	}
	for rows.Next() {
		var f endpoint.Folder
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Folders = append(snap.Folders, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, "SELECT id, definition_json, favorite FROM endpoints ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query endpoints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id       string
			def      string
			favorite int
		)
		if err := rows.Scan(&id, &def, &favorite); err != nil {
			return nil, err
		}
		ep := &endpoint.Endpoint{}
		if err := json.Unmarshal([]byte(def), ep); err != nil {
			s.log.Warn("Skipping unreadable endpoint", "id", id, "error", err)
			continue
		}
		ep.ID = id
		ep.Normalize()
		snap.Endpoints = append(snap.Endpoints, ep)
		if favorite == 1 {
			snap.Favorites = append(snap.Favorites, id)
		}
	}
	return snap, rows.Err()
}

func (s *sqliteStore) SaveEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	if ep == nil || strings.TrimSpace(ep.ID) == "" {
		return fmt.Errorf("endpoint id cannot be empty")
	}
	def, err := json.Marshal(ep)
	if err != nil {
		return fmt.Errorf("marshal endpoint: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO endpoints (id, folder_id, name, method, path, definition_json, updated_ns)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    folder_id = excluded.folder_id,
    name = excluded.name,
    method = excluded.method,
    path = excluded.path,
    definition_json = excluded.definition_json,
    updated_ns = excluded.updated_ns`,
		ep.ID, nullString(ep.FolderID), ep.Name, ep.Method, ep.Path, string(def), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save endpoint: %w", err)
	}
	return nil
}

func (s *sqliteStore) DeleteEndpoint(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM endpoints WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	return nil
}

func (s *sqliteStore) SaveFolder(ctx context.Context, folder endpoint.Folder) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO folders (id, name) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name`, folder.ID, folder.Name)
	if err != nil {
		return fmt.Errorf("save folder: %w", err)
	}
	return nil
}

func (s *sqliteStore) DeleteFolder(ctx context.Context, id string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM endpoints WHERE folder_id = ?", id); err != nil {
		return fmt.Errorf("delete folder endpoints: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return tx.Commit()
}

func (s *sqliteStore) SetFavorite(ctx context.Context, endpointID string, favorite bool) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE endpoints SET favorite = ? WHERE id = ?", boolToInt(favorite), endpointID); err != nil {
		return fmt.Errorf("set favorite: %w", err)
	}
	return nil
}

func (s *sqliteStore) RecordHistory(ctx context.Context, entry *HistoryEntry) (_ *HistoryEntry, err error) {
	if entry == nil {
		return nil, fmt.Errorf("history entry is nil")
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC()

	data, err := json.Marshal(entry.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal history data: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO history (
    id, endpoint, endpoint_id, source, method, status, timestamp_ns, data_json, latency_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Endpoint,
		nullString(entry.EndpointID),
		entry.Source,
		entry.Method,
		entry.Status,
		entry.Timestamp.UnixNano(),
		string(data),
		entry.Latency,
	)
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"DELETE FROM history WHERE seq NOT IN (SELECT seq FROM history ORDER BY timestamp_ns DESC, seq DESC LIMIT ?)",
		s.limit,
	); err != nil {
		return nil, fmt.Errorf("prune history: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

const historyColumns = "id, endpoint, endpoint_id, source, method, status, timestamp_ns, data_json, latency_ms"

func (s *sqliteStore) ListHistory(ctx context.Context, opts HistoryOptions) ([]*HistoryEntry, int, error) {
	where, args := buildHistoryFilters(opts)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM history "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + historyColumns + " FROM history " + where + " ORDER BY timestamp_ns DESC, seq DESC"
	listArgs := append([]interface{}{}, args...)
	if opts.Limit > 0 {
		offset := opts.Offset
		if offset < 0 {
			offset = 0
		}
		query += " LIMIT ? OFFSET ?"
		listArgs = append(listArgs, opts.Limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []*HistoryEntry{}
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *sqliteStore) IterateHistory(ctx context.Context, opts HistoryOptions, fn func(*HistoryEntry) bool) error {
	where, args := buildHistoryFilters(opts)
	rows, err := s.db.QueryContext(ctx, "SELECT "+historyColumns+" FROM history "+where+" ORDER BY timestamp_ns DESC, seq DESC", args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return err
		}
		if !fn(entry) {
			break
		}
	}
	return rows.Err()
}

func (s *sqliteStore) ClearHistory(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanHistoryEntry(scanner interface {
	Scan(dest ...interface{}) error
}) (*HistoryEntry, error) {
	var (
		entry      HistoryEntry
		endpointID sql.NullString
		ts         int64
		data       sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.Endpoint,
		&endpointID,
		&entry.Source,
		&entry.Method,
		&entry.Status,
		&ts,
		&data,
		&entry.Latency,
	); err != nil {
		return nil, err
	}
	entry.EndpointID = endpointID.String
	entry.Timestamp = time.Unix(0, ts).UTC()
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &entry.Data); err != nil {
			entry.Data = simulator.ParsePayload(data.String)
		}
	}
	return &entry, nil
}

func buildHistoryFilters(opts HistoryOptions) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if method := strings.TrimSpace(opts.Method); method != "" {
		clauses = append(clauses, "UPPER(method) = UPPER(?)")
		args = append(args, method)
	}
	if source := strings.TrimSpace(opts.Source); source != "" {
		clauses = append(clauses, "LOWER(source) = LOWER(?)")
		args = append(args, source)
	}
	if search := strings.TrimSpace(strings.ToLower(opts.Search)); search != "" {
		clauses = append(clauses, "INSTR(LOWER(endpoint), ?) > 0")
		args = append(args, search)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

