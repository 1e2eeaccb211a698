package cart

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// StorageKey is the key holding the serialized multi-salon cart blob.
	StorageKey = "salonCarts"

	// Keys written by the single-salon cart that predates StorageKey.
	LegacyCartKey      = "cart"
	LegacyTimestampKey = "cartTimestamp"
	LegacySalonKey     = "currentSalonId"

	// DefaultTTL is how long an untouched salon cart stays valid.
	DefaultTTL = 30 * time.Minute
)

// Carts is the persisted cart state for one visitor, keyed by salon id.
type Carts struct {
	Salons map[string]Entry `json:"salons"`
}

// Entry is the cart for a single salon.
type Entry struct {
	Items     []int64
	UpdatedAt time.Time
}

type entryJSON struct {
	Items     []int64 `json:"items"`
	UpdatedAt int64   `json:"updatedAt"`
}

// NewCarts returns an empty cart state.
func NewCarts() Carts {
	return Carts{Salons: map[string]Entry{}}
}

// MarshalJSON writes updatedAt as epoch milliseconds so browser-written blobs
// and server-written blobs share one format.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{Items: e.Items}
	if out.Items == nil {
		out.Items = []int64{}
	}
	if !e.UpdatedAt.IsZero() {
		out.UpdatedAt = e.UpdatedAt.UnixMilli()
	}
	return json.Marshal(out)
}

// UnmarshalJSON is lenient: anything it cannot interpret yields an entry that
// CleanupExpired will drop, never an error.
func (e *Entry) UnmarshalJSON(data []byte) error {
	*e = Entry{}
	var raw struct {
		Items     []any `json:"items"`
		UpdatedAt any   `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	e.Items = NormalizeItems(raw.Items)
	if ms, ok := toNumber(raw.UpdatedAt); ok {
		e.UpdatedAt = time.UnixMilli(int64(ms))
	}
	return nil
}

// decodeCarts parses a stored blob. Parse failures and shape mismatches give
// an empty state.
func decodeCarts(raw string) Carts {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &top); err != nil || top == nil {
		return NewCarts()
	}
	salonsRaw, ok := top["salons"]
	if !ok {
		return NewCarts()
	}
	var salons map[string]Entry
	if err := json.Unmarshal(salonsRaw, &salons); err != nil || salons == nil {
		return NewCarts()
	}
	return Carts{Salons: salons}
}

// CleanupExpired drops entries that have no items, no usable timestamp, or
// are older than ttl at now. The bool reports whether anything was dropped.
func CleanupExpired(carts Carts, now time.Time, ttl time.Duration) (Carts, bool) {
	cleaned := make(map[string]Entry, len(carts.Salons))
	changed := false
	for salonID, entry := range carts.Salons {
		items := uniqueIDs(entry.Items)
		if len(items) == 0 || entry.UpdatedAt.IsZero() || now.Sub(entry.UpdatedAt) > ttl {
			changed = true
			continue
		}
		cleaned[salonID] = Entry{Items: items, UpdatedAt: entry.UpdatedAt}
	}
	return Carts{Salons: cleaned}, changed
}

// MergeCarts combines two states. When both hold the same salon the entry
// with the newer UpdatedAt wins.
func MergeCarts(base, incoming Carts) Carts {
	merged := make(map[string]Entry, len(base.Salons)+len(incoming.Salons))
	for salonID, entry := range base.Salons {
		merged[salonID] = entry
	}
	for salonID, entry := range incoming.Salons {
		current, ok := merged[salonID]
		if !ok || entry.UpdatedAt.After(current.UpdatedAt) {
			merged[salonID] = entry
		}
	}
	return Carts{Salons: merged}
}

// NormalizeItems converts loosely typed ids (JSON numbers or numeric strings)
// into unique integers, keeping first-seen order. Non-integral values are
// skipped.
func NormalizeItems(values []any) []int64 {
	out := make([]int64, 0, len(values))
	seen := make(map[int64]struct{}, len(values))
	for _, v := range values {
		n, ok := toNumber(v)
		if !ok || n != math.Trunc(n) {
			continue
		}
		id := int64(n)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func toNumber(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case int64:
		n = float64(t)
	case int:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// parseLeadingInt reads the leading decimal digits of s the way the legacy
// browser code parsed cartTimestamp ("1700000000000abc" -> 1700000000000).
func parseLeadingInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
