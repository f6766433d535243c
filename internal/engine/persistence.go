package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Collections persisted by the MemStore.
const (
	CollectionStates = "states"
	CollectionUsers  = "users"
)

// Persister stores whole collections of JSON documents keyed by id.
type Persister interface {
	SaveCollection(collection string, docs map[string]json.RawMessage) error
	LoadCollection(collection string) (map[string]json.RawMessage, error)
	Close() error
}

// Persistence keeps one JSON file per collection in DataDir.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
}

// NewPersistence initializes a file persister, creating dir if needed.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dir)
	}
	return &Persistence{DataDir: dir}, nil
}

// SaveCollection writes the collection atomically: the documents go to a
// temporary file which then replaces the previous one.
func (p *Persistence) SaveCollection(collection string, docs map[string]json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := p.path(collection)
	tempPath := filePath + ".tmp"

	bytes, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", collection)
	}
	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return errors.Wrapf(err, "write %s", tempPath)
	}
	return errors.Wrapf(os.Rename(tempPath, filePath), "replace %s", filePath)
}

// LoadCollection reads a collection. A missing file is an empty collection.
func (p *Persistence) LoadCollection(collection string) (map[string]json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	docs := make(map[string]json.RawMessage)
	content, err := os.ReadFile(p.path(collection))
	if os.IsNotExist(err) {
		return docs, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", collection)
	}
	if err := json.Unmarshal(content, &docs); err != nil {
		return nil, errors.Wrapf(err, "decode %s", collection)
	}
	return docs, nil
}

// Close is a no-op; files are closed after every write.
func (p *Persistence) Close() error {
	return nil
}

func (p *Persistence) path(collection string) string {
	return filepath.Join(p.DataDir, collection+".json")
}
