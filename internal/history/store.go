// Package history persists each user's plot-request history and mints the
// fingerprints that identify entries.
//
// Design philosophy: the store is an action log, not a content-addressed
// cache. Every generated plot appends an entry; identical configurations
// appear as many times as the user ran them. One record per user holds the
// whole items array, mutated load-patch-store inside a single bbolt write
// transaction so concurrent mutations within a process cannot interleave.
//
// Buckets:
//
//	history: one JSON record per user, keyed "history:<uid>"
//	_meta:   internal schema version and created_at
//
// All operations are silent no-ops when userID is empty: anonymous sessions
// do not accumulate history.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dmfenton/plotdesk/internal/bus"
	"github.com/dmfenton/plotdesk/internal/model"
	"github.com/dmfenton/plotdesk/internal/util"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketHistory  = []byte("history")
	bucketInternal = []byte("_meta")
)

// Store wraps a bbolt database holding per-user history records.
type Store struct {
	db     *bolt.DB
	events *bus.Bus // may be nil; history-updated notifications are optional
}

// record is the on-disk envelope for one user's history.
type record struct {
	Items []model.HistoryItem `json:"items"`
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string, events *bus.Bus) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db, events: events}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketHistory, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// userKey builds the per-user record key.
func userKey(userID string) []byte {
	return []byte("history:" + userID)
}

// ─── Operations ───────────────────────────────────────────────────────────────

// Append adds a new history item for userID. If id is empty a fresh
// fingerprint is minted from the request. Returns the item's id, or empty
// when no user is authenticated (in which case nothing is written).
func (s *Store) Append(userID string, request model.TimeSeriesRequest, plotType model.PlotType, id string) (string, error) {
	if userID == "" {
		return "", nil
	}
	if id == "" {
		id = Fingerprint(request)
	}
	item := model.HistoryItem{
		ID:        id,
		Request:   request,
		CreatedAt: util.NowISO(),
		PlotType:  plotType,
	}

	err := s.mutate(userID, func(rec *record) bool {
		rec.Items = append(rec.Items, item)
		return true
	})
	if err != nil {
		return "", err
	}
	s.notify(userID)
	return id, nil
}

// ListForUser returns the user's history sorted newest first. An empty
// userID yields an empty list.
func (s *Store) ListForUser(userID string) ([]model.HistoryItem, error) {
	if userID == "" {
		return nil, nil
	}
	var rec record
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHistory).Get(userKey(userID))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", userID, err)
	}
	// CreatedAt is RFC 3339, so lexicographic compare orders chronologically.
	sort.SliceStable(rec.Items, func(i, j int) bool {
		return rec.Items[i].CreatedAt > rec.Items[j].CreatedAt
	})
	return rec.Items, nil
}

// Get returns the item with the given id from the user's history.
// Returns (item, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) Get(userID, id string) (model.HistoryItem, bool, error) {
	items, err := s.ListForUser(userID)
	if err != nil {
		return model.HistoryItem{}, false, err
	}
	for _, item := range items {
		if item.ID == id {
			return item, true, nil
		}
	}
	return model.HistoryItem{}, false, nil
}

// PatchThumbnail replaces only the thumbnail of the identified item's
// request. A nil thumbnail clears it. Patching an id that no longer exists
// logs a warning and is a no-op: thumbnail capture is best-effort and races
// against deletion.
func (s *Store) PatchThumbnail(userID, id string, thumbnail []byte) error {
	if userID == "" {
		return nil
	}
	found := false
	err := s.mutate(userID, func(rec *record) bool {
		for i := range rec.Items {
			if rec.Items[i].ID == id {
				rec.Items[i].Request.Thumbnail = thumbnail
				found = true
				return true
			}
		}
		return false
	})
	if err != nil {
		return err
	}
	if !found {
		slog.Warn("history item not found for thumbnail patch", "user", userID, "id", id)
		return nil
	}
	s.notify(userID)
	return nil
}

// PatchPlotOptions updates only the plot options that are provided: a
// non-empty colorMapName and a non-nil opacity. Same miss semantics as
// PatchThumbnail.
func (s *Store) PatchPlotOptions(userID, id, colorMapName string, opacity *float64) error {
	if userID == "" {
		return nil
	}
	found := false
	err := s.mutate(userID, func(rec *record) bool {
		for i := range rec.Items {
			if rec.Items[i].ID == id {
				if colorMapName != "" {
					rec.Items[i].Request.ColorMapName = colorMapName
				}
				if opacity != nil {
					rec.Items[i].Request.Opacity = opacity
				}
				found = true
				return true
			}
		}
		return false
	})
	if err != nil {
		return err
	}
	if !found {
		slog.Warn("history item not found for plot options patch", "user", userID, "id", id)
		return nil
	}
	s.notify(userID)
	return nil
}

// Delete removes the identified item from the user's history. Deleting an
// absent id is a no-op.
func (s *Store) Delete(userID, id string) error {
	if userID == "" {
		return nil
	}
	removed := false
	err := s.mutate(userID, func(rec *record) bool {
		next := rec.Items[:0]
		for _, item := range rec.Items {
			if item.ID != id {
				next = append(next, item)
			}
		}
		removed = len(next) != len(rec.Items)
		rec.Items = next
		return removed
	})
	if err != nil {
		return err
	}
	if removed {
		s.notify(userID)
	}
	return nil
}

// ─── Internals ────────────────────────────────────────────────────────────────

// mutate runs fn against the freshest copy of the user's record inside one
// write transaction and stores the result if fn reports a change. The
// load-patch-store happens under bbolt's single-writer lock, so mutations
// within this process never interleave.
func (s *Store) mutate(userID string, fn func(*record) bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHistory)
		key := userKey(userID)

		var rec record
		if v := b.Get(key); v != nil {
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding history for %s: %w", userID, err)
			}
		}

		if !fn(&rec) {
			return nil
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding history for %s: %w", userID, err)
		}
		return b.Put(key, data)
	})
}

// notify publishes a history-updated event if a bus is attached.
func (s *Store) notify(userID string) {
	if s.events != nil {
		s.events.Publish(bus.HistoryUpdated{UserID: userID})
	}
}
