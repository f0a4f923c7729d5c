package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	model "github.com/okian/podium/internal/domain/model"
)

const badgerKeyPrefix = "snapshot:"

// BadgerArchive stores one JSON snapshot per tournament in BadgerDB.
type BadgerArchive struct {
	db *badger.DB
}

// OpenBadgerArchive opens (or creates) a database at path. An empty path
// opens an in-memory database.
func OpenBadgerArchive(path string) (*BadgerArchive, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger archive: %w", err)
	}
	return &BadgerArchive{db: db}, nil
}

// NewBadgerArchive wraps an already opened database.
func NewBadgerArchive(db *badger.DB) *BadgerArchive {
	return &BadgerArchive{db: db}
}

func (a *BadgerArchive) Name() string { return "badger" }

func (a *BadgerArchive) Save(_ context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+snap.TournamentID), data)
	})
}

func (a *BadgerArchive) Delete(_ context.Context, tournamentID string) error {
	return a.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(badgerKeyPrefix + tournamentID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (a *BadgerArchive) LoadAll(ctx context.Context) ([]*model.Snapshot, error) {
	var out []*model.Snapshot
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var snap model.Snapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, &snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *BadgerArchive) Close() error {
	return a.db.Close()
}
