// Package index stores one vector index per division and serves cached,
// read-only snapshots of them to concurrent queries.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dgallion1/lawsearch/internal/division"
	"github.com/dgallion1/lawsearch/internal/embedding"
	"go.uber.org/zap"
)

var (
	ErrNoIndices      = errors.New("no indices have been built")
	ErrIndexNotFound  = errors.New("division index not found")
	ErrSchemeMismatch = errors.New("index was built with a different embedding scheme")
	ErrUnknownLabel   = errors.New("label is not in the division vocabulary")
)

const tmpPrefix = ".build-"

// Manager owns the on-disk indices under root. Reads of a label share its
// lock; a rebuild of that label holds it exclusively while swapping
// directories. Scheme changes take the global lock exclusively.
type Manager struct {
	root  string
	vocab *division.Vocabulary
	log   *zap.Logger

	global sync.RWMutex
	scheme string // guarded by global

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
	cache map[string]*Index // key: scheme + "\x00" + label
}

// NewManager creates a Manager for indices built with scheme.
func NewManager(root string, vocab *division.Vocabulary, scheme string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		root:   root,
		vocab:  vocab,
		log:    log,
		scheme: scheme,
		locks:  make(map[string]*sync.RWMutex),
		cache:  make(map[string]*Index),
	}
}

// Root returns the storage root.
func (m *Manager) Root() string { return m.root }

// Scheme returns the embedding scheme indices must have been built with.
func (m *Manager) Scheme() string {
	m.global.RLock()
	defer m.global.RUnlock()
	return m.scheme
}

// Get returns the index for label, loading it from disk on first use.
func (m *Manager) Get(ctx context.Context, label string) (*Index, error) {
	store, ok := m.vocab.StoreFor(label)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}

	m.global.RLock()
	defer m.global.RUnlock()

	key := cacheKey(m.scheme, label)
	if ix := m.cached(key); ix != nil {
		return ix, nil
	}

	if !m.rootExists() {
		return nil, ErrNoIndices
	}

	lk := m.lockFor(label)
	lk.RLock()
	defer lk.RUnlock()

	if ix := m.cached(key); ix != nil {
		return ix, nil
	}

	path := m.dbPath(store)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrIndexNotFound, label)
		}
		return nil, fmt.Errorf("stat index %q: %w", label, err)
	}

	ix, err := loadIndex(ctx, path, label)
	if err != nil {
		return nil, fmt.Errorf("loading index %q: %w", label, err)
	}
	if ix.Scheme != m.scheme {
		return nil, fmt.Errorf("%w: %q has %s, want %s", ErrSchemeMismatch, label, ix.Scheme, m.scheme)
	}

	m.mu.Lock()
	m.cache[key] = ix
	m.mu.Unlock()

	m.log.Debug("index loaded", zap.String("label", label), zap.Int("chunks", ix.Len()))
	return ix, nil
}

// Rebuild embeds chunks with embedder and atomically replaces label's index.
// The embedder's scheme must match the manager's; switch schemes with
// InvalidateAll first.
func (m *Manager) Rebuild(ctx context.Context, label string, chunks []division.Chunk, embedder embedding.Embedder) error {
	store, ok := m.vocab.StoreFor(label)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	if s := m.Scheme(); embedder.Scheme() != s {
		return fmt.Errorf("%w: embedder is %s, manager is %s", ErrSchemeMismatch, embedder.Scheme(), s)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding %q: %w", label, err)
		}
	}

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return fmt.Errorf("creating index root: %w", err)
	}
	tmp, err := os.MkdirTemp(m.root, tmpPrefix+store+"-")
	if err != nil {
		return fmt.Errorf("creating build dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := writeIndex(ctx, filepath.Join(tmp, dbFile), embedder.Scheme(), chunks, vectors); err != nil {
		return fmt.Errorf("writing index %q: %w", label, err)
	}

	m.global.RLock()
	defer m.global.RUnlock()
	if embedder.Scheme() != m.scheme {
		return fmt.Errorf("%w: scheme changed during rebuild of %q", ErrSchemeMismatch, label)
	}

	lk := m.lockFor(label)
	lk.Lock()
	defer lk.Unlock()

	final := filepath.Join(m.root, store)
	if err := os.RemoveAll(final); err != nil {
		return fmt.Errorf("removing stale index %q: %w", label, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("installing index %q: %w", label, err)
	}

	m.mu.Lock()
	for k := range m.cache {
		if strings.HasSuffix(k, "\x00"+label) {
			delete(m.cache, k)
		}
	}
	m.mu.Unlock()

	m.log.Info("index rebuilt",
		zap.String("label", label),
		zap.Int("chunks", len(chunks)),
		zap.String("scheme", embedder.Scheme()))
	return nil
}

// InvalidateAll switches the manager to scheme and drops every cached index.
// Indices on disk built with another scheme stay unreachable until rebuilt.
func (m *Manager) InvalidateAll(scheme string) {
	m.global.Lock()
	defer m.global.Unlock()

	prev := m.scheme
	m.scheme = scheme
	m.mu.Lock()
	m.cache = make(map[string]*Index)
	m.mu.Unlock()

	m.log.Info("indices invalidated", zap.String("from", prev), zap.String("to", scheme))
}

// Purge deletes every index and leftover build directory under root.
func (m *Manager) Purge() error {
	m.global.Lock()
	defer m.global.Unlock()

	m.mu.Lock()
	m.cache = make(map[string]*Index)
	m.mu.Unlock()

	entries, err := os.ReadDir(m.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading index root: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, known := m.vocab.LabelForStore(e.Name()); known || strings.HasPrefix(e.Name(), tmpPrefix) {
			if err := os.RemoveAll(filepath.Join(m.root, e.Name())); err != nil {
				return fmt.Errorf("removing %s: %w", e.Name(), err)
			}
		}
	}
	m.log.Info("indices purged", zap.String("root", m.root))
	return nil
}

// Available returns the labels, in vocabulary order, whose index exists and
// matches the current scheme.
func (m *Manager) Available(ctx context.Context) ([]string, error) {
	m.global.RLock()
	defer m.global.RUnlock()

	if !m.rootExists() {
		return nil, ErrNoIndices
	}

	var out []string
	for _, e := range m.vocab.Entries() {
		if ix := m.cached(cacheKey(m.scheme, e.Label)); ix != nil {
			out = append(out, e.Label)
			continue
		}
		path := m.dbPath(e.Store)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		lk := m.lockFor(e.Label)
		lk.RLock()
		scheme, err := readScheme(ctx, path)
		lk.RUnlock()
		if err != nil {
			m.log.Warn("unreadable index", zap.String("label", e.Label), zap.Error(err))
			continue
		}
		if scheme == m.scheme {
			out = append(out, e.Label)
		}
	}
	return out, nil
}

func (m *Manager) rootExists() bool {
	fi, err := os.Stat(m.root)
	return err == nil && fi.IsDir()
}

func (m *Manager) dbPath(store string) string {
	return filepath.Join(m.root, store, dbFile)
}

func (m *Manager) cached(key string) *Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache[key]
}

func (m *Manager) lockFor(label string) *sync.RWMutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lk, ok := m.locks[label]
	if !ok {
		lk = &sync.RWMutex{}
		m.locks[label] = lk
	}
	return lk
}

func cacheKey(scheme, label string) string { return scheme + "\x00" + label }
