// Package storage holds the persistence adapters behind the core ports.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/dkeye/Presence/internal/domain"
)

const (
	progressKey      = "progress:global"
	activityPrefix   = "activity:"
	pointsPrefix     = "points:"
	credentialPrefix = "credential:"
)

// BadgerStore implements the progress store, the activity sink and the
// credential store on one embedded database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database at path. An empty path keeps
// everything in memory.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) getJSON(key string, v any) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return true, nil
}

func (s *BadgerStore) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *BadgerStore) Load(ctx context.Context) (domain.ProgressRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProgressRecord{}, false, err
	}
	var rec domain.ProgressRecord
	ok, err := s.getJSON(progressKey, &rec)
	return rec, ok, err
}

func (s *BadgerStore) Save(ctx context.Context, rec domain.ProgressRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.setJSON(progressKey, rec)
}

func activityKey(userID domain.UserID, kind domain.ActivityKind) []byte {
	return []byte(activityPrefix + string(userID) + ":" + string(kind))
}

// IncrementActivity adds count to the per-user per-kind counter in one
// read-modify-write transaction. Conflicting writers are retried.
func (s *BadgerStore) IncrementActivity(ctx context.Context, userID domain.UserID, kind domain.ActivityKind, count int) error {
	key := activityKey(userID, kind)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			current := 0
			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
			case err != nil:
				return err
			default:
				if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &current) }); err != nil {
					return err
				}
			}
			data, err := json.Marshal(current + count)
			if err != nil {
				return err
			}
			return txn.Set(key, data)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("increment %s: %w", key, err)
		}
		return nil
	}
}

// ActivityCounts returns every non-zero counter of a user.
func (s *BadgerStore) ActivityCounts(ctx context.Context, userID domain.UserID) (map[domain.ActivityKind]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(activityPrefix + string(userID) + ":")
	out := make(map[domain.ActivityKind]int)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			kind := domain.ActivityKind(strings.TrimPrefix(string(item.Key()), string(prefix)))
			var n int
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &n) }); err != nil {
				return err
			}
			out[kind] = n
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list activity of %s: %w", userID, err)
	}
	return out, nil
}

// AddPointEvent appends one event under a time-ordered key.
func (s *BadgerStore) AddPointEvent(ctx context.Context, ev domain.PointEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := fmt.Sprintf("%s%s:%020d:%s", pointsPrefix, ev.UserID, ev.OccurredAt.UnixNano(), uuid.NewString())
	return s.setJSON(key, ev)
}

// PointEvents returns the events of a user oldest first.
func (s *BadgerStore) PointEvents(ctx context.Context, userID domain.UserID) ([]domain.PointEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(pointsPrefix + string(userID) + ":")
	var raw [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			raw = append(raw, val)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list points of %s: %w", userID, err)
	}
	var decodeErr error
	events := lo.FilterMap(raw, func(val []byte, _ int) (domain.PointEvent, bool) {
		var ev domain.PointEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			decodeErr = errors.Join(decodeErr, err)
			return ev, false
		}
		return ev, true
	})
	return events, decodeErr
}

func (s *BadgerStore) GetCredential(ctx context.Context, userID domain.UserID) (domain.Credential, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credential{}, false, err
	}
	var cred domain.Credential
	ok, err := s.getJSON(credentialPrefix+string(userID), &cred)
	return cred, ok, err
}

func (s *BadgerStore) PutCredential(ctx context.Context, userID domain.UserID, cred domain.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.setJSON(credentialPrefix+string(userID), cred)
}
