// Package journal keeps a local history of VPN state changes in SQLite.
//
// The database runs with a single connection in WAL mode. Views are
// queued by Observe and written by one background goroutine so the
// controller loop never waits on disk.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yllada/vpn-panel/common"
	"github.com/yllada/vpn-panel/vpn"
)

const (
	dataDirPerms = 0o700
	queueSize    = 64
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TEXT NOT NULL,
		domain TEXT NOT NULL,
		state TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transitions_domain ON transitions(domain, id)`,
}

// Entry is one recorded state change.
type Entry struct {
	ID      int64
	Time    time.Time
	Domain  string
	State   string
	Error   string
	Message string
}

// Store holds the SQLite handle.
type Store struct {
	Path string
	DB   *sql.DB

	log   common.Logger
	queue chan Entry
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	mu   sync.Mutex
	last map[string]vpn.View
}

// DefaultPath is the journal location in the user's data directory.
func DefaultPath() (string, error) {
	dir, err := common.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.JournalFileName), nil
}

// Open connects to SQLite, applies pragmas and creates the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), dataDirPerms); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, stmt := range append([]string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}, schema...) {
		if _, err := conn.Exec(stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("prepare journal: %w", err)
		}
	}

	s := &Store{
		Path:  path,
		DB:    conn,
		log:   common.Component("journal"),
		queue: make(chan Entry, queueSize),
		done:  make(chan struct{}),
		last:  make(map[string]vpn.View),
	}
	s.wg.Add(1)
	go s.writer()
	return s, nil
}

// Observe queues v when it changes the state, error or message of its
// domain. Throughput-only updates are not recorded.
func (s *Store) Observe(v vpn.View) {
	s.mu.Lock()
	prev, seen := s.last[v.Domain]
	s.last[v.Domain] = v
	s.mu.Unlock()

	if seen && prev.State == v.State && prev.Error == v.Error && prev.Message == v.Message {
		return
	}

	e := Entry{
		Time:    time.Now().UTC(),
		Domain:  v.Domain,
		State:   v.State.String(),
		Error:   v.Error,
		Message: v.Message,
	}
	select {
	case <-s.done:
	case s.queue <- e:
	default:
		s.log.Warn("Journal queue full, dropping %s/%s", e.Domain, e.State)
	}
}

// Record writes e immediately.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO transitions (ts, domain, state, error, message) VALUES (?, ?, ?, ?, ?)`,
		e.Time.Format(time.RFC3339Nano), e.Domain, e.State, e.Error, e.Message)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// History returns up to limit entries, newest first. An empty domain
// selects every domain.
func (s *Store) History(ctx context.Context, domain string, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	query := `SELECT id, ts, domain, state, error, message FROM transitions`
	args := []any{}
	if domain = strings.TrimSpace(domain); domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Domain, &e.State, &e.Error, &e.Message); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if e.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse transition time %q: %w", ts, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

// Close writes the queued entries and releases the database.
// It is safe to call Close on a nil Store.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
	return s.DB.Close()
}

func (s *Store) writer() {
	defer s.wg.Done()
	for {
		select {
		case e := <-s.queue:
			s.write(e)
		case <-s.done:
			for {
				select {
				case e := <-s.queue:
					s.write(e)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Record(ctx, e); err != nil {
		s.log.Error("Journal write failed: %v", err)
	}
}
