package cart

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/wolfman30/salon-storefront/pkg/logging"
)

// Store reads and writes the multi-salon cart blob. Storage failures never
// reach callers; the store degrades to an empty cart and logs at debug.
type Store struct {
	storage Storage
	key     string
	ttl     time.Duration
	now     func() time.Time
	logger  *logging.Logger
	onPurge func(n int)
}

// Option customises a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for swallowed storage errors.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStorageKey overrides StorageKey.
func WithStorageKey(key string) Option {
	return func(s *Store) {
		if strings.TrimSpace(key) != "" {
			s.key = key
		}
	}
}

// WithPurgeHook is called with the number of entries dropped whenever a
// cleanup rewrites the blob.
func WithPurgeHook(fn func(n int)) Option {
	return func(s *Store) {
		s.onPurge = fn
	}
}

// NewStore wraps storage.
func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		key:     StorageKey,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL reports the configured cart lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Load returns the stored state without cleaning it.
func (s *Store) Load(ctx context.Context) Carts {
	raw, ok, err := s.storage.GetItem(ctx, s.key)
	if err != nil {
		s.logger.Debug("cart: read storage failed", "key", s.key, "error", err)
		return NewCarts()
	}
	if !ok || raw == "" {
		return NewCarts()
	}
	return decodeCarts(raw)
}

// Save rewrites the whole blob.
func (s *Store) Save(ctx context.Context, carts Carts) {
	if carts.Salons == nil {
		carts.Salons = map[string]Entry{}
	}
	data, err := json.Marshal(carts)
	if err != nil {
		s.logger.Debug("cart: encode failed", "error", err)
		return
	}
	if err := s.storage.SetItem(ctx, s.key, string(data)); err != nil {
		s.logger.Debug("cart: write storage failed", "key", s.key, "error", err)
	}
}

// Cleanup loads the blob, drops invalid and expired entries and persists the
// result when something was dropped.
func (s *Store) Cleanup(ctx context.Context) Carts {
	loaded := s.Load(ctx)
	cleaned, changed := CleanupExpired(loaded, s.now(), s.ttl)
	if changed {
		s.Save(ctx, cleaned)
		if s.onPurge != nil {
			s.onPurge(len(loaded.Salons) - len(cleaned.Salons))
		}
	}
	return cleaned
}

// Items returns the cart for salonID after cleanup.
func (s *Store) Items(ctx context.Context, salonID string) []int64 {
	carts := s.Cleanup(ctx)
	entry, ok := carts.Salons[salonID]
	if !ok {
		return []int64{}
	}
	return uniqueIDs(entry.Items)
}

// SaveItems replaces the cart for salonID. An empty set removes the entry.
func (s *Store) SaveItems(ctx context.Context, salonID string, items []int64) {
	carts := s.Cleanup(ctx)
	items = uniqueIDs(items)
	if len(items) == 0 {
		if _, ok := carts.Salons[salonID]; ok {
			delete(carts.Salons, salonID)
			s.Save(ctx, carts)
		}
		return
	}
	carts.Salons[salonID] = Entry{Items: items, UpdatedAt: s.stamp()}
	s.Save(ctx, carts)
}

// Clear empties the cart for salonID.
func (s *Store) Clear(ctx context.Context, salonID string) {
	s.SaveItems(ctx, salonID, nil)
}

// Import merges a blob written elsewhere (typically the browser) into the
// stored state. Newer entries win per salon.
func (s *Store) Import(ctx context.Context, raw string) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	incoming := decodeCarts(raw)
	if len(incoming.Salons) == 0 {
		return
	}
	s.Save(ctx, MergeCarts(s.Load(ctx), incoming))
}

// MigrateLegacy moves a single-salon cart written under the legacy keys into
// the multi-salon blob. The legacy keys are removed whenever any of them is
// present. It reports whether items were migrated.
func (s *Store) MigrateLegacy(ctx context.Context, defaultSalonID string) bool {
	raw, hasCart := s.get(ctx, LegacyCartKey)
	ts, hasStamp := s.get(ctx, LegacyTimestampKey)
	legacySalon, hasSalon := s.get(ctx, LegacySalonKey)
	if !hasCart && !hasStamp && !hasSalon {
		return false
	}
	defer s.removeLegacy(ctx)

	if raw == "" {
		return false
	}

	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		s.logger.Debug("cart: legacy cart unreadable", "error", err)
		values = nil
	}
	items := NormalizeItems(values)

	now := s.now()
	updatedAt := now
	if ms, ok := parseLeadingInt(ts); ok {
		updatedAt = time.UnixMilli(ms)
	}

	salonID := defaultSalonID
	if legacySalon != "" {
		salonID = legacySalon
	}

	if len(items) == 0 || now.Sub(updatedAt) > s.ttl {
		return false
	}
	carts := s.Load(ctx)
	carts.Salons[salonID] = Entry{Items: items, UpdatedAt: time.UnixMilli(updatedAt.UnixMilli())}
	s.Save(ctx, carts)
	return true
}

func (s *Store) removeLegacy(ctx context.Context) {
	for _, key := range []string{LegacyCartKey, LegacyTimestampKey, LegacySalonKey} {
		if err := s.storage.RemoveItem(ctx, key); err != nil {
			s.logger.Debug("cart: remove legacy key failed", "key", key, "error", err)
		}
	}
}

func (s *Store) get(ctx context.Context, key string) (string, bool) {
	value, ok, err := s.storage.GetItem(ctx, key)
	if err != nil {
		s.logger.Debug("cart: read storage failed", "key", key, "error", err)
		return "", false
	}
	return value, ok
}

func (s *Store) stamp() time.Time {
	return time.UnixMilli(s.now().UnixMilli())
}
