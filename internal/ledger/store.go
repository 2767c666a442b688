package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Record describes one token minted through the site.
type Record struct {
	TokenID  string    `json:"tokenId"`
	Owner    string    `json:"owner"`
	AssetURL string    `json:"assetUrl"`
	TxHash   string    `json:"txHash,omitempty"`
	MintedAt time.Time `json:"mintedAt"`
}

// Store abstracts mint history persistence. Save is an upsert keyed by token id.
type Store interface {
	Get(ctx context.Context, tokenID string) (*Record, error)
	Save(ctx context.Context, record Record) error
	List(ctx context.Context, limit int) ([]Record, error)
}

var ErrMissingTokenID = errors.New("record has no token id")

// MemoryStore is mostly for testing.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Record),
	}
}

func (m *MemoryStore) Get(_ context.Context, tokenID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[tokenID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) Save(_ context.Context, record Record) error {
	if record.TokenID == "" {
		return ErrMissingTokenID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[record.TokenID] = record
	return nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newest(m.data, limit), nil
}

// FileStore persists records to a JSON file. Suitable for a single instance.
type FileStore struct {
	path string
	mu   sync.Mutex
	data map[string]Record
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path: path,
		data: make(map[string]Record),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *FileStore) load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	blob, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(blob) == 0 {
		return nil
	}
	return json.Unmarshal(blob, &f.data)
}

func (f *FileStore) persist() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	blob, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Get(_ context.Context, tokenID string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.data[tokenID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (f *FileStore) Save(_ context.Context, record Record) error {
	if record.TokenID == "" {
		return ErrMissingTokenID
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[record.TokenID] = record
	return f.persist()
}

func (f *FileStore) List(_ context.Context, limit int) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return newest(f.data, limit), nil
}

// newest returns up to limit records, most recent first. limit <= 0 means all.
func newest(data map[string]Record, limit int) []Record {
	out := make([]Record, 0, len(data))
	for _, rec := range data {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MintedAt.Equal(out[j].MintedAt) {
			return out[i].TokenID > out[j].TokenID
		}
		return out[i].MintedAt.After(out[j].MintedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
