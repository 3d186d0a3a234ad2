package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelcraft.ai/internal/sim/catalogs"
	"voxelcraft.ai/internal/sim/tuning"
	"voxelcraft.ai/internal/sim/world/terrain/store"
)

// SQLiteIndex is a read model of pipeline events. Writes are queued to a
// single writer goroutine and dropped when the queue is full; the JSONL
// event log stays the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropEvents   atomic.Uint64
	dropSessions atomic.Uint64
}

type reqKind int

const (
	reqEvent reqKind = iota + 1
	reqSession
	reqSync
)

type req struct {
	kind reqKind

	event   store.EventEntry
	session sessionRow
	done    chan struct{}
}

type sessionRow struct {
	ID       string
	Remote   string
	Opened   string
	Closed   string
	Chunks   int
	Edits    int
	Finished bool
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return newIndex(db, 65536), nil
}

func newIndex(db *sql.DB, queue int) *SQLiteIndex {
	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session TEXT NOT NULL,
			kind TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			vertices INTEGER NOT NULL,
			indices INTEGER NOT NULL,
			duration_us INTEGER NOT NULL,
			t REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);`,
		`CREATE INDEX IF NOT EXISTS idx_events_chunk ON events(cx, cz);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			remote TEXT NOT NULL,
			opened_at TEXT NOT NULL,
			closed_at TEXT,
			chunks INTEGER NOT NULL DEFAULT 0,
			edits INTEGER NOT NULL DEFAULT 0
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteEvent(e store.EventEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqEvent, event: e}:
	default:
		s.dropEvents.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) OpenSession(id, remote string) {
	if s == nil || s.closed.Load() {
		return
	}
	r := sessionRow{ID: id, Remote: remote, Opened: time.Now().UTC().Format(time.RFC3339Nano)}
	select {
	case s.ch <- req{kind: reqSession, session: r}:
	default:
		s.dropSessions.Add(1)
	}
}

func (s *SQLiteIndex) CloseSession(id string, chunks, edits int) {
	if s == nil || s.closed.Load() {
		return
	}
	r := sessionRow{
		ID:       id,
		Closed:   time.Now().UTC().Format(time.RFC3339Nano),
		Chunks:   chunks,
		Edits:    edits,
		Finished: true,
	}
	select {
	case s.ch <- req{kind: reqSession, session: r}:
	default:
		s.dropSessions.Add(1)
	}
}

// Sync blocks until every request queued before it is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertCatalogs stores the block catalog and the effective tuning.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, reg *catalogs.Registry, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil && len(b) > 0 {
			rows = append(rows, kv{name: "blocks_defs", digest: reg.Digest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEvent, _ := s.db.Prepare(`INSERT INTO events(session,kind,cx,cz,vertices,indices,duration_us,t,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	openSession, _ := s.db.Prepare(`INSERT OR REPLACE INTO sessions(id,remote,opened_at) VALUES(?,?,?)`)
	closeSession, _ := s.db.Prepare(`UPDATE sessions SET closed_at=?, chunks=?, edits=? WHERE id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertEvent, openSession, closeSession} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 1000
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqEvent:
			e := r.event
			if insertEvent == nil {
				break
			}
			if _, err := tx.Stmt(insertEvent).Exec(
				e.Session, e.Kind, e.CX, e.CZ, e.Vertices, e.Indices, e.DurationUS, e.Time, e.RecordedAt,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSession:
			se := r.session
			var err error
			if se.Finished {
				if closeSession != nil {
					_, err = tx.Stmt(closeSession).Exec(se.Closed, se.Chunks, se.Edits, se.ID)
				}
			} else if openSession != nil {
				_, err = tx.Stmt(openSession).Exec(se.ID, se.Remote, se.Opened)
			}
			if err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}

type KindStats struct {
	Kind       string  `json:"kind"`
	Count      int64   `json:"count"`
	Vertices   int64   `json:"vertices"`
	AvgMicros  float64 `json:"avg_us"`
	LastChunkX int     `json:"last_cx"`
	LastChunkZ int     `json:"last_cz"`
}

type Stats struct {
	Kinds         []KindStats `json:"kinds"`
	Sessions      int64       `json:"sessions"`
	QueueDepth    int         `json:"queue_depth"`
	QueueCapacity int         `json:"queue_capacity"`
	DropEvents    uint64      `json:"drop_events_total"`
	DropSessions  uint64      `json:"drop_sessions_total"`
}

// Stats aggregates committed events per kind. Call Sync first to include
// queued writes.
func (s *SQLiteIndex) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropEvents:    s.dropEvents.Load(),
		DropSessions:  s.dropSessions.Load(),
	}
	if s.db == nil {
		return st, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.kind, COUNT(*), COALESCE(SUM(e.vertices),0), COALESCE(AVG(e.duration_us),0),
			(SELECT cx FROM events WHERE kind=e.kind ORDER BY id DESC LIMIT 1),
			(SELECT cz FROM events WHERE kind=e.kind ORDER BY id DESC LIMIT 1)
		FROM events e GROUP BY e.kind ORDER BY e.kind`)
	if err != nil {
		return st, fmt.Errorf("query event stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k KindStats
		if err := rows.Scan(&k.Kind, &k.Count, &k.Vertices, &k.AvgMicros, &k.LastChunkX, &k.LastChunkZ); err != nil {
			return st, err
		}
		st.Kinds = append(st.Kinds, k)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&st.Sessions); err != nil {
		return st, fmt.Errorf("query sessions: %w", err)
	}
	return st, nil
}
