package chat

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// MaxPinned caps how many conversations may be pinned at once.
const MaxPinned = 5

// ErrPinLimit is returned when pinning would exceed MaxPinned.
var ErrPinLimit = errors.New("pin limit reached")

// Summary is one conversation in the sidebar. ID/Title/timestamps come
// from the backend; Pinned/Archived are client-owned metadata merged on
// load and never sent upstream.
type Summary struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Pinned    bool
	Archived  bool
}

// Meta is the client-owned slice of a conversation's state.
type Meta struct {
	Pinned   bool `json:"pinned"`
	Archived bool `json:"archived"`
}

// Store holds the conversation list for the sidebar.
type Store struct {
	items []Summary
}

func NewStore() *Store { return &Store{} }

// SetAll replaces the list with backend records, merging client metadata
// onto each by conversation id, and re-sorts.
func (s *Store) SetAll(convs []Summary, meta map[string]Meta) {
	items := make([]Summary, len(convs))
	copy(items, convs)
	for i := range items {
		if m, ok := meta[items[i].ID]; ok {
			items[i].Pinned = m.Pinned
			items[i].Archived = m.Archived
		}
	}
	s.items = items
	s.sort()
}

// Upsert inserts or updates a single conversation and re-sorts.
func (s *Store) Upsert(sum Summary) {
	for i := range s.items {
		if s.items[i].ID == sum.ID {
			sum.Pinned = s.items[i].Pinned
			sum.Archived = s.items[i].Archived
			s.items[i] = sum
			s.sort()
			return
		}
	}
	s.items = append(s.items, sum)
	s.sort()
}

func (s *Store) Remove(id string) {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

func (s *Store) Get(id string) (Summary, bool) {
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return Summary{}, false
}

// TogglePin flips a conversation's pin. Pinning clears Archived (the two
// are mutually exclusive) and fails with ErrPinLimit at the cap, leaving
// all state untouched.
func (s *Store) TogglePin(id string) (Meta, error) {
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if !s.items[i].Pinned && s.pinnedCount() >= MaxPinned {
			return Meta{}, ErrPinLimit
		}
		s.items[i].Pinned = !s.items[i].Pinned
		if s.items[i].Pinned {
			s.items[i].Archived = false
		}
		meta := Meta{Pinned: s.items[i].Pinned, Archived: s.items[i].Archived}
		s.sort()
		return meta, nil
	}
	return Meta{}, errors.New("unknown conversation")
}

// ToggleArchive flips a conversation's archived flag; archiving clears
// the pin.
func (s *Store) ToggleArchive(id string) (Meta, error) {
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		s.items[i].Archived = !s.items[i].Archived
		if s.items[i].Archived {
			s.items[i].Pinned = false
		}
		meta := Meta{Pinned: s.items[i].Pinned, Archived: s.items[i].Archived}
		s.sort()
		return meta, nil
	}
	return Meta{}, errors.New("unknown conversation")
}

// Visible returns the non-archived conversations in display order.
func (s *Store) Visible() []Summary {
	out := make([]Summary, 0, len(s.items))
	for _, it := range s.items {
		if !it.Archived {
			out = append(out, it)
		}
	}
	return out
}

// Archived returns the archived conversations in display order.
func (s *Store) Archived() []Summary {
	out := make([]Summary, 0)
	for _, it := range s.items {
		if it.Archived {
			out = append(out, it)
		}
	}
	return out
}

func (s *Store) pinnedCount() int {
	n := 0
	for _, it := range s.items {
		if it.Pinned {
			n++
		}
	}
	return n
}

func (s *Store) sort() {
	sort.SliceStable(s.items, func(i, j int) bool {
		a, b := s.items[i], s.items[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		return a.sortTime().After(b.sortTime())
	})
}

func (sum Summary) sortTime() time.Time {
	if !sum.UpdatedAt.IsZero() {
		return sum.UpdatedAt
	}
	return sum.CreatedAt
}

// TitleFromMessage derives a new conversation's title from its first
// user message, matching the backend's truncation.
func TitleFromMessage(text string) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) > 50 {
		return string(r[:50])
	}
	return text
}
