// Package favorites keeps the user's saved pictures on this device.
package favorites

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"apod-explorer/internal/client/localstore"
	"apod-explorer/internal/domain"
)

// Entry is one saved picture, keyed by date.
type Entry struct {
	Date      string           `json:"date"`
	Title     string           `json:"title"`
	Thumbnail string           `json:"thumbnail"`
	MediaType domain.MediaType `json:"media_type"`
}

// EntryFor builds the entry saved for pic.
func EntryFor(pic domain.Picture) Entry {
	return Entry{
		Date:      pic.Date,
		Title:     pic.Title,
		Thumbnail: pic.URL,
		MediaType: pic.MediaType,
	}
}

// Store holds at most one entry per date, most recently saved first. Every
// mutation rewrites the whole persisted list.
type Store struct {
	kv     localstore.Store
	logger logrus.FieldLogger

	// writeMu orders toggles so the persisted list never lags memory.
	writeMu sync.Mutex
	mu      sync.RWMutex
	entries []Entry
}

// Load reads the persisted list. Read or parse failures leave the store empty
// and are returned as a *localstore.PersistenceWarning; the store is usable either way.
func Load(ctx context.Context, kv localstore.Store, logger logrus.FieldLogger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Store{kv: kv, logger: logger}

	raw, ok, err := kv.Get(ctx, localstore.KeyFavorites)
	if err != nil {
		logger.WithError(err).Warn("read favorites")
		return s, localstore.Warn("read", localstore.KeyFavorites, err)
	}
	if !ok || len(raw) == 0 {
		return s, nil
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		logger.WithError(err).Warn("parse favorites")
		return s, localstore.Warn("parse", localstore.KeyFavorites, err)
	}
	s.entries = dedupe(entries)
	logger.WithField("count", len(s.entries)).Debug("favorites loaded")
	return s, nil
}

func dedupe(in []Entry) []Entry {
	seen := make(map[string]struct{}, len(in))
	out := make([]Entry, 0, len(in))
	for _, e := range in {
		if _, dup := seen[e.Date]; dup || e.Date == "" {
			continue
		}
		seen[e.Date] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Toggle removes the entry for e.Date if saved, otherwise saves e at the front.
// A write failure is returned as a warning; memory already holds the new list.
func (s *Store) Toggle(ctx context.Context, e Entry) (saved bool, warn error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next := make([]Entry, 0, len(s.entries)+1)
	for _, cur := range s.entries {
		if cur.Date != e.Date {
			next = append(next, cur)
		}
	}
	saved = len(next) == len(s.entries)
	if saved {
		next = append([]Entry{e}, next...)
	}
	s.entries = next
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"date": e.Date, "saved": saved}).Debug("favorite toggled")
	return saved, s.persist(ctx, next)
}

func (s *Store) persist(ctx context.Context, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return localstore.Warn("encode", localstore.KeyFavorites, fmt.Errorf("marshal favorites: %w", err))
	}
	if err := s.kv.Set(ctx, localstore.KeyFavorites, data); err != nil {
		s.logger.WithError(err).Warn("write favorites")
		return localstore.Warn("write", localstore.KeyFavorites, err)
	}
	return nil
}

func (s *Store) IsFavorite(date string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.Date == date {
			return true
		}
	}
	return false
}

// List returns a copy, most recently saved first.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
