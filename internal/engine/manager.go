// Package engine is the content manager: it owns the documents, the folder
// tree, the inverted index with its autocomplete trie, the ranker, and the
// LRU result cache, and coordinates them under one lock.
//
// Concurrency model: a single RWMutex serialises index mutations against
// searches, and a monotonically increasing generation counter tags every
// cached result with the index state it was computed from. Any mutation bumps
// the generation and clears the cache, so a search that raced with a mutation
// can neither serve nor store a stale entry.
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/organizerlabs/smart-search-organizer/internal/engine/cache"
	"github.com/organizerlabs/smart-search-organizer/internal/engine/foldertree"
	"github.com/organizerlabs/smart-search-organizer/internal/engine/index"
	"github.com/organizerlabs/smart-search-organizer/internal/engine/ranker"
	"github.com/organizerlabs/smart-search-organizer/internal/engine/tokenizer"
	"github.com/organizerlabs/smart-search-organizer/internal/engine/trie"
	"github.com/organizerlabs/smart-search-organizer/pkg/config"
	apperrors "github.com/organizerlabs/smart-search-organizer/pkg/errors"
)

// SearchResult is the outcome of one search query.
type SearchResult struct {
	Query     string             `json:"query"`
	Mode      string             `json:"mode"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
}

// FolderInfo is a read-only snapshot of one folder for listings.
type FolderInfo struct {
	Path      string `json:"path"`
	Documents int    `json:"documents"`
	Children  int    `json:"children"`
}

// CacheStats reports result-cache effectiveness.
type CacheStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Entries  int   `json:"entries"`
	Capacity int   `json:"capacity"`
}

// Stats is an engine-wide snapshot.
type Stats struct {
	Documents  int    `json:"documents"`
	Terms      int    `json:"terms"`
	Folders    int    `json:"folders"`
	Generation uint64 `json:"generation"`
}

// docRecord is the engine's internal per-document state. termFreq and maxFreq
// are derived from title and body at write time so searches never re-tokenize.
type docRecord struct {
	doc      Document
	termFreq map[string]int
	maxFreq  int
}

type cachedResult struct {
	result     SearchResult
	generation uint64
}

// Manager is the content manager. All exported methods are goroutine-safe.
type Manager struct {
	cfg         config.EngineConfig
	defaultMode index.Mode

	mu      sync.RWMutex
	docs    map[string]*docRecord
	nextID  int64
	trie    *trie.Trie
	index   *index.Index
	folders *foldertree.Tree
	scorer  *ranker.Scorer

	// generation is bumped on every mutation; cached results carry the
	// generation they were computed at and are only served when it is
	// still current.
	generation atomic.Uint64

	cacheMu sync.Mutex
	results *cache.LRU[string, cachedResult]
	hits    atomic.Int64
	misses  atomic.Int64

	now func() time.Time
}

// New creates a Manager from validated engine configuration.
func New(cfg config.EngineConfig) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	mode, err := index.ParseMode(cfg.DefaultMode)
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	results, err := cache.New[string, cachedResult](cfg.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	t := trie.New()
	weights := ranker.Weights{
		TermFreq: cfg.Weights.TermFreq,
		Recency:  cfg.Weights.Recency,
		Usage:    cfg.Weights.Usage,
	}
	return &Manager{
		cfg:         cfg,
		defaultMode: mode,
		docs:        make(map[string]*docRecord),
		trie:        t,
		index:       index.New(t),
		folders:     foldertree.New(),
		scorer:      ranker.NewScorer(weights, cfg.RecencyDecay, cfg.UsageCap),
		results:     results,
		now:         time.Now,
	}, nil
}

// WithClock overrides the engine's clock, including the scorer's. Test-only.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	m.scorer.WithClock(now)
	return m
}

// DefaultMode returns the configured default combination mode.
func (m *Manager) DefaultMode() index.Mode { return m.defaultMode }

// Generation returns the current index generation. External caches embed it
// in their keys so entries from older generations are never served.
func (m *Manager) Generation() uint64 { return m.generation.Load() }

// invalidate marks every cached result stale. Called with m.mu held for
// writing by every mutating operation.
func (m *Manager) invalidate() {
	m.generation.Add(1)
	m.cacheMu.Lock()
	m.results.Clear()
	m.cacheMu.Unlock()
}

// AddDocument indexes a new document and places it in folderPath, creating
// the folder chain if needed. An empty folderPath means the root.
func (m *Manager) AddDocument(title, body string, tags []string, folderPath string) (*Document, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"document title must not be empty")
	}
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"document body must not be empty")
	}
	normalized, err := foldertree.Normalize(folderPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := fmt.Sprintf("doc-%06d", m.nextID)
	freqs := tokenizer.Frequencies(title + " " + body)

	if _, err := m.folders.Create(normalized); err != nil {
		return nil, err
	}
	if err := m.folders.AddDocument(normalized, id); err != nil {
		return nil, err
	}
	m.index.Add(id, freqs)

	now := m.now()
	rec := &docRecord{
		doc: Document{
			ID:           id,
			Title:        title,
			Body:         body,
			Tags:         copyTags(tags),
			FolderPath:   normalized,
			CreatedAt:    now,
			LastAccessed: now,
		},
		termFreq: freqs,
		maxFreq:  maxFrequency(freqs),
	}
	m.docs[id] = rec
	m.invalidate()
	return rec.doc.clone(), nil
}

// GetDocument returns the document and records the access: last-accessed
// moves to now and the access count increments, which feeds the recency and
// usage ranking components.
func (m *Manager) GetDocument(id string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.docs[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound,
			"document %q does not exist", id)
	}
	rec.doc.LastAccessed = m.now()
	rec.doc.AccessCount++
	return rec.doc.clone(), nil
}

// UpdateDocument applies a partial update. When title or body changes the
// document is re-tokenized: the old terms are released from the index and
// trie and the new terms registered, so autocomplete vocabulary always
// reflects live content.
func (m *Manager) UpdateDocument(id string, upd DocumentUpdate) (*Document, error) {
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"document title must not be empty")
	}
	if upd.Body != nil && strings.TrimSpace(*upd.Body) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"document body must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.docs[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound,
			"document %q does not exist", id)
	}

	title := rec.doc.Title
	body := rec.doc.Body
	if upd.Title != nil {
		title = *upd.Title
	}
	if upd.Body != nil {
		body = *upd.Body
	}
	if title != rec.doc.Title || body != rec.doc.Body {
		m.index.Remove(id, rec.termFreq)
		rec.termFreq = tokenizer.Frequencies(title + " " + body)
		rec.maxFreq = maxFrequency(rec.termFreq)
		m.index.Add(id, rec.termFreq)
		rec.doc.Title = title
		rec.doc.Body = body
	}
	if upd.Tags != nil {
		rec.doc.Tags = copyTags(upd.Tags)
	}
	m.invalidate()
	return rec.doc.clone(), nil
}

// DeleteDocument removes the document from the index, the trie, and its
// folder.
func (m *Manager) DeleteDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.docs[id]
	if !ok {
		return apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound,
			"document %q does not exist", id)
	}
	m.index.Remove(id, rec.termFreq)
	if err := m.folders.RemoveDocument(rec.doc.FolderPath, id); err != nil {
		return err
	}
	delete(m.docs, id)
	m.invalidate()
	return nil
}

// MoveDocument relocates the document to folderPath, creating the folder
// chain if needed. The indexed content is untouched.
func (m *Manager) MoveDocument(id, folderPath string) (*Document, error) {
	normalized, err := foldertree.Normalize(folderPath)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.docs[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound,
			"document %q does not exist", id)
	}
	if normalized == rec.doc.FolderPath {
		return rec.doc.clone(), nil
	}
	if _, err := m.folders.Create(normalized); err != nil {
		return nil, err
	}
	if err := m.folders.RemoveDocument(rec.doc.FolderPath, id); err != nil {
		return nil, err
	}
	if err := m.folders.AddDocument(normalized, id); err != nil {
		return nil, err
	}
	rec.doc.FolderPath = normalized
	m.invalidate()
	return rec.doc.clone(), nil
}

// CreateFolder ensures the folder chain exists. Idempotent.
func (m *Manager) CreateFolder(path string) (FolderInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	folder, err := m.folders.Create(path)
	if err != nil {
		return FolderInfo{}, err
	}
	m.invalidate()
	return folderInfo(folder), nil
}

// DeleteFolder removes the folder; its documents move to the parent folder
// and its child folders are reparented under the parent, merging with
// same-name siblings. Document records are updated to their post-reparent
// folder paths.
func (m *Manager) DeleteFolder(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	folder, err := m.folders.Get(path)
	if err != nil {
		return err
	}
	parent := folder.Parent()
	if err := m.folders.Delete(folder.Path()); err != nil {
		return err
	}
	// Reparenting may have merged folders away, so resync document paths
	// from the surviving subtree rather than from pre-delete captures.
	for sub := range parent.Walk() {
		for _, id := range sub.DocumentIDs() {
			if rec, ok := m.docs[id]; ok {
				rec.doc.FolderPath = sub.Path()
			}
		}
	}
	m.invalidate()
	return nil
}

// ListDocuments returns documents sorted by ID. With a folderPath it returns
// only the documents directly in that folder; with an empty path it returns
// every document.
func (m *Manager) ListDocuments(folderPath string) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if strings.TrimSpace(folderPath) == "" {
		docs := make([]*Document, 0, len(m.docs))
		for _, rec := range m.docs {
			docs = append(docs, rec.doc.clone())
		}
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
		return docs, nil
	}
	folder, err := m.folders.Get(folderPath)
	if err != nil {
		return nil, err
	}
	ids := folder.DocumentIDs()
	docs := make([]*Document, 0, len(ids))
	for _, id := range ids {
		if rec, ok := m.docs[id]; ok {
			docs = append(docs, rec.doc.clone())
		}
	}
	return docs, nil
}

// ListFolders returns a snapshot of every folder in depth-first order.
func (m *Manager) ListFolders() []FolderInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]FolderInfo, 0, m.folders.Len())
	for folder := range m.folders.DFS() {
		infos = append(infos, folderInfo(folder))
	}
	return infos
}

// Search runs a ranked query. topK <= 0 falls back to the configured default;
// mode is the term combination strategy. The second return value reports
// whether the result came from the cache.
func (m *Manager) Search(query string, topK int, mode index.Mode) (*SearchResult, bool, error) {
	if topK <= 0 {
		topK = m.cfg.DefaultTopK
	}
	if topK > m.cfg.MaxTopK {
		return nil, false, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"topK %d exceeds maximum %d", topK, m.cfg.MaxTopK)
	}

	tokens := tokenizer.Distinct(query)
	if len(tokens) == 0 {
		return &SearchResult{
			Query:   query,
			Mode:    mode.String(),
			Results: []ranker.ScoredDoc{},
		}, false, nil
	}

	key := cacheKey(tokens, mode, topK)
	gen := m.generation.Load()

	m.cacheMu.Lock()
	if entry, ok := m.results.Get(key); ok {
		if entry.generation == m.generation.Load() {
			m.cacheMu.Unlock()
			m.hits.Add(1)
			res := entry.result
			res.Query = query
			return &res, true, nil
		}
		m.results.Delete(key)
	}
	m.cacheMu.Unlock()
	m.misses.Add(1)

	m.mu.RLock()
	candidates := m.index.Candidates(tokens, mode)
	scored := make([]ranker.ScoredDoc, 0, len(candidates))
	for id := range candidates {
		rec, ok := m.docs[id]
		if !ok {
			continue
		}
		stats := ranker.DocStats{
			TermFreq:     rec.termFreq,
			MaxFreq:      rec.maxFreq,
			LastAccessed: rec.doc.LastAccessed,
			AccessCount:  rec.doc.AccessCount,
		}
		scored = append(scored, ranker.ScoredDoc{
			DocID: id,
			Score: m.scorer.Score(stats, tokens),
		})
	}
	m.mu.RUnlock()

	result := SearchResult{
		Query:     query,
		Mode:      mode.String(),
		TotalHits: len(candidates),
		Results:   ranker.TopK(scored, topK),
	}

	// Store only if no mutation happened since the generation was read; a
	// concurrent mutation has already cleared the cache and this entry would
	// reintroduce stale results.
	m.cacheMu.Lock()
	if m.generation.Load() == gen {
		m.results.Put(key, cachedResult{result: result, generation: gen})
	}
	m.cacheMu.Unlock()

	return &result, false, nil
}

// Autocomplete returns up to limit indexed terms starting with prefix, in
// lexicographic order. limit <= 0 falls back to the configured default.
func (m *Manager) Autocomplete(prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = m.cfg.AutocompleteLimit
	}
	if limit > m.cfg.MaxAutocompleteLimit {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"limit %d exceeds maximum %d", limit, m.cfg.MaxAutocompleteLimit)
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []string{}, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	words := m.trie.Autocomplete(prefix, limit)
	if words == nil {
		return []string{}, nil
	}
	return words, nil
}

// ClearCache drops every cached search result without touching the index.
func (m *Manager) ClearCache() {
	m.cacheMu.Lock()
	m.results.Clear()
	m.cacheMu.Unlock()
}

// CacheSnapshot returns current result-cache statistics.
func (m *Manager) CacheSnapshot() CacheStats {
	m.cacheMu.Lock()
	entries := m.results.Len()
	capacity := m.results.Capacity()
	m.cacheMu.Unlock()
	return CacheStats{
		Hits:     m.hits.Load(),
		Misses:   m.misses.Load(),
		Entries:  entries,
		Capacity: capacity,
	}
}

// Snapshot returns engine-wide counters.
func (m *Manager) Snapshot() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Documents:  len(m.docs),
		Terms:      m.index.Terms(),
		Folders:    m.folders.Len(),
		Generation: m.generation.Load(),
	}
}

// cacheKey fingerprints a query by its sorted distinct tokens, mode, and
// result size. Token-order variants of the same query share one entry.
func cacheKey(tokens []string, mode index.Mode, topK int) string {
	sorted := make([]string, len(tokens))
	copy(sorted, tokens)
	sort.Strings(sorted)
	raw := strings.Join(sorted, ",") + "|" + mode.String() + "|" + strconv.Itoa(topK)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:16])
}

func folderInfo(f *foldertree.Folder) FolderInfo {
	return FolderInfo{
		Path:      f.Path(),
		Documents: f.NumDocuments(),
		Children:  f.NumChildren(),
	}
}

func copyTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

func maxFrequency(freqs map[string]int) int {
	max := 0
	for _, f := range freqs {
		if f > max {
			max = f
		}
	}
	return max
}
