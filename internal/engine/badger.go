package engine

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BadgerPersistence stores every document as its own key, "<collection>/<id>".
type BadgerPersistence struct {
	db *badger.DB
}

// NewBadgerPersistence opens a badger database in dir. An empty dir keeps the
// database in memory.
func NewBadgerPersistence(dir string) (*BadgerPersistence, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(logrus.WithField("component", "badger")).
		WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open badger at %q", dir)
	}
	return &BadgerPersistence{db: db}, nil
}

// SaveCollection replaces the stored collection with docs in one transaction.
func (b *BadgerPersistence) SaveCollection(collection string, docs map[string]json.RawMessage) error {
	prefix := []byte(collection + "/")
	return b.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := docs[string(key[len(prefix):])]; !ok {
				stale = append(stale, key)
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return errors.Wrapf(err, "delete %s", key)
			}
		}
		for id, doc := range docs {
			if err := txn.Set(append(append([]byte{}, prefix...), id...), doc); err != nil {
				return errors.Wrapf(err, "set %s/%s", collection, id)
			}
		}
		return nil
	})
}

// LoadCollection returns every document stored under the collection prefix.
func (b *BadgerPersistence) LoadCollection(collection string) (map[string]json.RawMessage, error) {
	prefix := []byte(collection + "/")
	docs := make(map[string]json.RawMessage)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			docs[string(item.Key()[len(prefix):])] = val
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", collection)
	}
	return docs, nil
}

// Close flushes and closes the database.
func (b *BadgerPersistence) Close() error {
	return b.db.Close()
}
