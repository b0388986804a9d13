// Package state holds the client-owned durable state: current
// conversation, pin/archive metadata, scroll offsets, and per-message
// expanded flags. Values live in two tiers: an in-memory map that is
// authoritative while the process runs, and a SQLite mirror that
// survives restarts. The backend never sees any of this.
package state

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"algchat/internal/chat"

	_ "modernc.org/sqlite"
)

const (
	keyCurrentConversation = "current_conversation"
	scrollKeyPrefix        = "scroll:"
	expandedKeyPrefix      = "expanded:"
)

type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *slog.Logger

	current  string
	scroll   map[string]int
	meta     map[string]chat.Meta
	expanded map[string]map[int]bool
}

// Open loads the durable mirror from <dir>/algchat.db into memory.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "algchat.db"))
	if err != nil {
		return nil, err
	}
	// Keep sqlite responsive under contention.
	_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
	_, _ = db.Exec("PRAGMA journal_mode = WAL;")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL;")

	schema := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conv_meta (
			conversation_id TEXT PRIMARY KEY,
			pinned INTEGER NOT NULL DEFAULT 0,
			archived INTEGER NOT NULL DEFAULT 0
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	s := &Store{
		db:       db,
		logger:   logger,
		scroll:   make(map[string]int),
		meta:     make(map[string]chat.Meta),
		expanded: make(map[string]map[int]bool),
	}
	s.load()
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// load hydrates the memory tier. Corrupt rows are logged and skipped;
// losing a scroll offset or an expanded flag is never worth a crash.
func (s *Store) load() {
	rows, err := s.db.Query(`SELECT key, value FROM kv`)
	if err != nil {
		s.logger.Warn("state: reading kv table", "error", err)
	} else {
		defer rows.Close()
		for rows.Next() {
			var key, value string
			if err := rows.Scan(&key, &value); err != nil {
				continue
			}
			switch {
			case key == keyCurrentConversation:
				s.current = value
			case strings.HasPrefix(key, scrollKeyPrefix):
				off, err := strconv.Atoi(value)
				if err != nil || off < 0 {
					s.logger.Warn("state: bad scroll offset, dropping", "key", key, "value", value)
					continue
				}
				s.scroll[strings.TrimPrefix(key, scrollKeyPrefix)] = off
			case strings.HasPrefix(key, expandedKeyPrefix):
				var flags map[int]bool
				if err := json.Unmarshal([]byte(value), &flags); err != nil {
					s.logger.Warn("state: bad expanded flags, dropping", "key", key, "error", err)
					continue
				}
				s.expanded[strings.TrimPrefix(key, expandedKeyPrefix)] = flags
			}
		}
	}

	metaRows, err := s.db.Query(`SELECT conversation_id, pinned, archived FROM conv_meta`)
	if err != nil {
		s.logger.Warn("state: reading conv_meta table", "error", err)
		return
	}
	defer metaRows.Close()
	for metaRows.Next() {
		var id string
		var pinned, archived int
		if err := metaRows.Scan(&id, &pinned, &archived); err != nil {
			continue
		}
		s.meta[id] = chat.Meta{Pinned: pinned != 0, Archived: archived != 0}
	}
}

func (s *Store) putKV(key, value string) {
	if _, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
		s.logger.Warn("state: persisting value", "key", key, "error", err)
	}
}

// CurrentConversation returns the conversation selected when the client
// last ran, or "".
func (s *Store) CurrentConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) SetCurrentConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = id
	s.putKV(keyCurrentConversation, id)
}

// ScrollOffset returns the saved offset for a conversation. The memory
// tier answers when it can; ok=false means no tier has an entry.
func (s *Store) ScrollOffset(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	off, ok := s.scroll[id]
	return off, ok
}

// SetScrollOffset writes through to both tiers.
func (s *Store) SetScrollOffset(id string, offset int) {
	if id == "" || offset < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.scroll[id]; ok && prev == offset {
		return
	}
	s.scroll[id] = offset
	s.putKV(scrollKeyPrefix+id, strconv.Itoa(offset))
}

// AllMeta returns the pin/archive metadata map for merging onto a
// freshly fetched conversation list.
func (s *Store) AllMeta() map[string]chat.Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]chat.Meta, len(s.meta))
	for k, v := range s.meta {
		out[k] = v
	}
	return out
}

func (s *Store) SetMeta(id string, meta chat.Meta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[id] = meta
	if _, err := s.db.Exec(
		`INSERT INTO conv_meta (conversation_id, pinned, archived) VALUES (?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET pinned = excluded.pinned, archived = excluded.archived`,
		id, boolInt(meta.Pinned), boolInt(meta.Archived)); err != nil {
		s.logger.Warn("state: persisting conversation metadata", "conversation", id, "error", err)
	}
}

func (s *Store) DeleteMeta(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meta, id)
	delete(s.scroll, id)
	delete(s.expanded, id)
	if _, err := s.db.Exec(`DELETE FROM conv_meta WHERE conversation_id = ?`, id); err != nil {
		s.logger.Warn("state: deleting conversation metadata", "conversation", id, "error", err)
	}
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key IN (?, ?)`,
		scrollKeyPrefix+id, expandedKeyPrefix+id); err != nil {
		s.logger.Warn("state: deleting conversation keys", "conversation", id, "error", err)
	}
}

// Expanded returns the per-message expanded flags for a conversation,
// keyed by message index.
func (s *Store) Expanded(id string) map[int]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]bool, len(s.expanded[id]))
	for k, v := range s.expanded[id] {
		out[k] = v
	}
	return out
}

func (s *Store) SetExpanded(id string, index int, on bool) {
	if id == "" || index < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	flags := s.expanded[id]
	if flags == nil {
		flags = make(map[int]bool)
		s.expanded[id] = flags
	}
	if on {
		flags[index] = true
	} else {
		delete(flags, index)
	}
	payload, err := json.Marshal(flags)
	if err != nil {
		return
	}
	s.putKV(expandedKeyPrefix+id, string(payload))
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
