package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/organizerlabs/smart-search-organizer/internal/engine/index"
	"github.com/organizerlabs/smart-search-organizer/pkg/config"
	apperrors "github.com/organizerlabs/smart-search-organizer/pkg/errors"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		CacheCapacity: 8,
		Weights: config.RankingWeights{
			TermFreq: 0.5,
			Recency:  0.3,
			Usage:    0.2,
		},
		RecencyDecay:         1.0 / 3600.0,
		UsageCap:             10,
		DefaultMode:          "AND",
		DefaultTopK:          10,
		MaxTopK:              100,
		AutocompleteLimit:    10,
		MaxAutocompleteLimit: 50,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(testEngineConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := baseTime
	return m.WithClock(func() time.Time { return now })
}

func resultIDs(res *SearchResult) []string {
	ids := make([]string, 0, len(res.Results))
	for _, r := range res.Results {
		ids = append(ids, r.DocID)
	}
	return ids
}

func TestAddDocumentAssignsSequentialIDs(t *testing.T) {
	m := newTestManager(t)
	first, err := m.AddDocument("Project Roadmap", "Planning the next quarter", nil, "")
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	second, _ := m.AddDocument("Meeting Notes", "Weekly sync agenda", nil, "")

	if first.ID != "doc-000001" || second.ID != "doc-000002" {
		t.Errorf("IDs = %q, %q; want doc-000001, doc-000002", first.ID, second.ID)
	}
	if first.FolderPath != "/" {
		t.Errorf("FolderPath = %q, want /", first.FolderPath)
	}
	if !first.CreatedAt.Equal(baseTime) || !first.LastAccessed.Equal(baseTime) {
		t.Error("timestamps should be set to the clock")
	}
}

func TestAddDocumentValidation(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.AddDocument("  ", "body", nil, ""); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty title error = %v, want ErrInvalidInput", err)
	}
	if _, err := m.AddDocument("title", "", nil, ""); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty body error = %v, want ErrInvalidInput", err)
	}
	if _, err := m.AddDocument("title", "body", nil, "/a/../b"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("bad folder error = %v, want ErrInvalidInput", err)
	}
}

func TestAddDocumentCreatesFolderChain(t *testing.T) {
	m := newTestManager(t)
	doc, err := m.AddDocument("Notes", "quarterly budget numbers", nil, "/work/finance")
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if doc.FolderPath != "/work/finance" {
		t.Errorf("FolderPath = %q, want /work/finance", doc.FolderPath)
	}
	docs, err := m.ListDocuments("/work/finance")
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != doc.ID {
		t.Errorf("folder listing = %v, want just %s", docs, doc.ID)
	}
}

func TestGetDocumentRecordsAccess(t *testing.T) {
	m := newTestManager(t)
	doc, _ := m.AddDocument("Notes", "some content here", nil, "")

	got, err := m.GetDocument(doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", got.AccessCount)
	}
	got, _ = m.GetDocument(doc.ID)
	if got.AccessCount != 2 {
		t.Errorf("AccessCount = %d, want 2", got.AccessCount)
	}

	if _, err := m.GetDocument("doc-999999"); !errors.Is(err, apperrors.ErrDocumentNotFound) {
		t.Errorf("unknown doc error = %v, want ErrDocumentNotFound", err)
	}
}

func TestSearchModes(t *testing.T) {
	m := newTestManager(t)
	m.AddDocument("Go Guide", "concurrency patterns in golang", nil, "")
	m.AddDocument("Rust Guide", "memory safety patterns", nil, "")

	res, _, err := m.Search("patterns golang", 10, index.ModeAnd)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !reflect.DeepEqual(resultIDs(res), []string{"doc-000001"}) {
		t.Errorf("AND results = %v, want [doc-000001]", resultIDs(res))
	}

	res, _, _ = m.Search("patterns golang", 10, index.ModeOr)
	if res.TotalHits != 2 {
		t.Errorf("OR TotalHits = %d, want 2", res.TotalHits)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	m := newTestManager(t)
	m.AddDocument("Notes", "real content", nil, "")

	// Stop-word-only queries tokenize to nothing.
	res, hit, err := m.Search("the of and", 10, index.ModeAnd)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hit || res.TotalHits != 0 || len(res.Results) != 0 {
		t.Errorf("empty query result = %+v, hit=%v; want empty miss", res, hit)
	}
}

func TestSearchTopKBounds(t *testing.T) {
	m := newTestManager(t)
	m.AddDocument("Notes", "alpha beta", nil, "")

	if _, _, err := m.Search("alpha", 1000, index.ModeAnd); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("oversized topK error = %v, want ErrInvalidInput", err)
	}
	// Zero falls back to the default.
	res, _, err := m.Search("alpha", 0, index.ModeAnd)
	if err != nil || res.TotalHits != 1 {
		t.Errorf("default topK search = %+v, %v", res, err)
	}
}

func TestSearchCacheHitAndInvalidation(t *testing.T) {
	m := newTestManager(t)
	m.AddDocument("Go Guide", "concurrency in golang", nil, "")

	if _, hit, _ := m.Search("golang", 10, index.ModeAnd); hit {
		t.Fatal("first search should miss")
	}
	if _, hit, _ := m.Search("golang", 10, index.ModeAnd); !hit {
		t.Fatal("second identical search should hit")
	}
	// Token order does not matter for the cache key.
	if _, hit, _ := m.Search("golang concurrency", 10, index.ModeAnd); hit {
		t.Fatal("different query should miss")
	}
	if _, hit, _ := m.Search("concurrency golang", 10, index.ModeAnd); !hit {
		t.Fatal("reordered query should hit")
	}

	// Any mutation makes every cached result stale.
	m.AddDocument("Another", "more golang content", nil, "")
	if _, hit, _ := m.Search("golang", 10, index.ModeAnd); hit {
		t.Fatal("search after mutation should miss")
	}

	stats := m.CacheSnapshot()
	if stats.Hits != 2 || stats.Misses != 3 {
		t.Errorf("cache stats = %+v, want 2 hits / 3 misses", stats)
	}
}

func TestSearchRankingPrefersHigherTermFrequency(t *testing.T) {
	m := newTestManager(t)
	// The sparse doc's peak term is "filler", so its match normalises to 1/3;
	// the dense doc's peak term is the query term itself.
	m.AddDocument("Sparse", "golang filler filler filler", nil, "")
	m.AddDocument("Dense", "golang golang golang", nil, "")

	res, _, err := m.Search("golang", 10, index.ModeAnd)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := resultIDs(res); !reflect.DeepEqual(got, []string{"doc-000002", "doc-000001"}) {
		t.Errorf("ranking = %v, want dense doc first", got)
	}
}

func TestSearchRankingRewardsAccess(t *testing.T) {
	m := newTestManager(t)
	a, _ := m.AddDocument("First", "shared topic words", nil, "")
	m.AddDocument("Second", "shared topic words", nil, "")

	// Equal text; reading one repeatedly should break the tie in its favor.
	for i := 0; i < 5; i++ {
		m.GetDocument(a.ID)
	}
	res, _, _ := m.Search("shared topic", 10, index.ModeAnd)
	if len(res.Results) != 2 || res.Results[0].DocID != a.ID {
		t.Errorf("ranking = %v, want %s first", resultIDs(res), a.ID)
	}
}

func TestUpdateDocumentReindexes(t *testing.T) {
	m := newTestManager(t)
	doc, _ := m.AddDocument("Notes", "python tutorial", nil, "")

	newBody := "rust tutorial"
	if _, err := m.UpdateDocument(doc.ID, DocumentUpdate{Body: &newBody}); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}

	res, _, _ := m.Search("python", 10, index.ModeAnd)
	if res.TotalHits != 0 {
		t.Error("old terms should no longer match")
	}
	res, _, _ = m.Search("rust", 10, index.ModeAnd)
	if res.TotalHits != 1 {
		t.Error("new terms should match")
	}

	// Autocomplete vocabulary follows the update.
	if got, _ := m.Autocomplete("py", 10); len(got) != 0 {
		t.Errorf("Autocomplete(py) = %v, want empty", got)
	}
	if got, _ := m.Autocomplete("ru", 10); !reflect.DeepEqual(got, []string{"rust"}) {
		t.Errorf("Autocomplete(ru) = %v, want [rust]", got)
	}
}

func TestUpdateDocumentValidation(t *testing.T) {
	m := newTestManager(t)
	doc, _ := m.AddDocument("Notes", "content", nil, "")
	empty := " "
	if _, err := m.UpdateDocument(doc.ID, DocumentUpdate{Title: &empty}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("empty title error = %v, want ErrInvalidInput", err)
	}
	if _, err := m.UpdateDocument("doc-999999", DocumentUpdate{}); !errors.Is(err, apperrors.ErrDocumentNotFound) {
		t.Errorf("unknown doc error = %v, want ErrDocumentNotFound", err)
	}
}

func TestDeleteDocument(t *testing.T) {
	m := newTestManager(t)
	doc, _ := m.AddDocument("Notes", "ephemeral content", nil, "/tmp")

	if err := m.DeleteDocument(doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := m.GetDocument(doc.ID); !errors.Is(err, apperrors.ErrDocumentNotFound) {
		t.Error("deleted document should be gone")
	}
	res, _, _ := m.Search("ephemeral", 10, index.ModeAnd)
	if res.TotalHits != 0 {
		t.Error("deleted document should not match searches")
	}
	if got, _ := m.Autocomplete("eph", 10); len(got) != 0 {
		t.Errorf("Autocomplete after delete = %v, want empty", got)
	}
	if err := m.DeleteDocument(doc.ID); !errors.Is(err, apperrors.ErrDocumentNotFound) {
		t.Errorf("double delete error = %v, want ErrDocumentNotFound", err)
	}
}

func TestMoveDocument(t *testing.T) {
	m := newTestManager(t)
	doc, _ := m.AddDocument("Notes", "movable content", nil, "/src")

	moved, err := m.MoveDocument(doc.ID, "/dst/deep")
	if err != nil {
		t.Fatalf("MoveDocument: %v", err)
	}
	if moved.FolderPath != "/dst/deep" {
		t.Errorf("FolderPath = %q, want /dst/deep", moved.FolderPath)
	}
	if docs, _ := m.ListDocuments("/src"); len(docs) != 0 {
		t.Error("source folder should be empty")
	}
	if docs, _ := m.ListDocuments("/dst/deep"); len(docs) != 1 {
		t.Error("destination folder should hold the document")
	}
}

func TestDeleteFolderReparentsDocuments(t *testing.T) {
	m := newTestManager(t)
	inB, _ := m.AddDocument("In B", "content b", nil, "/a/b")
	inC, _ := m.AddDocument("In C", "content c", nil, "/a/b/c")

	if err := m.DeleteFolder("/a/b"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}

	// The deleted folder's own document lands in /a; the child folder's
	// document follows its folder to /a/c.
	got, _ := m.GetDocument(inB.ID)
	if got.FolderPath != "/a" {
		t.Errorf("doc in deleted folder moved to %q, want /a", got.FolderPath)
	}
	got, _ = m.GetDocument(inC.ID)
	if got.FolderPath != "/a/c" {
		t.Errorf("doc in child folder moved to %q, want /a/c", got.FolderPath)
	}
}

func TestDeleteFolderMergesCollidingSiblings(t *testing.T) {
	m := newTestManager(t)
	keep, _ := m.AddDocument("Keep", "original content", nil, "/a/b")
	moved, _ := m.AddDocument("Moved", "relocated content", nil, "/a/x/b")

	if err := m.DeleteFolder("/a/x"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}

	// /a/x/b merges into the existing /a/b; both documents end up there.
	for _, id := range []string{keep.ID, moved.ID} {
		doc, err := m.GetDocument(id)
		if err != nil {
			t.Fatalf("GetDocument(%s): %v", id, err)
		}
		if doc.FolderPath != "/a/b" {
			t.Errorf("%s FolderPath = %q, want /a/b", id, doc.FolderPath)
		}
	}
	docs, err := m.ListDocuments("/a/b")
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("/a/b holds %d documents, want 2", len(docs))
	}
	if _, err := m.ListDocuments("/a/x/b"); !errors.Is(err, apperrors.ErrFolderNotFound) {
		t.Errorf("/a/x/b error = %v, want ErrFolderNotFound", err)
	}
}

func TestDeleteFolderRoot(t *testing.T) {
	m := newTestManager(t)
	if err := m.DeleteFolder("/"); !errors.Is(err, apperrors.ErrRootDeletion) {
		t.Errorf("DeleteFolder(/) error = %v, want ErrRootDeletion", err)
	}
}

func TestListFoldersDFS(t *testing.T) {
	m := newTestManager(t)
	m.CreateFolder("/b")
	m.CreateFolder("/a/x")

	infos := m.ListFolders()
	paths := make([]string, 0, len(infos))
	for _, info := range infos {
		paths = append(paths, info.Path)
	}
	want := []string{"/", "/a", "/a/x", "/b"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("ListFolders = %v, want %v", paths, want)
	}
}

func TestAutocompleteLimits(t *testing.T) {
	m := newTestManager(t)
	m.AddDocument("Words", "apple apricot avocado banana", nil, "")

	got, err := m.Autocomplete("ap", 10)
	if err != nil {
		t.Fatalf("Autocomplete: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"apple", "apricot"}) {
		t.Errorf("Autocomplete(ap) = %v, want [apple apricot]", got)
	}

	if got, _ := m.Autocomplete("a", 1); len(got) != 1 {
		t.Errorf("limited Autocomplete = %v, want 1 entry", got)
	}
	if _, err := m.Autocomplete("a", 1000); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("oversized limit error = %v, want ErrInvalidInput", err)
	}
	if got, _ := m.Autocomplete("  ", 10); len(got) != 0 {
		t.Errorf("blank prefix = %v, want empty", got)
	}
}

func TestClearCacheKeepsIndex(t *testing.T) {
	m := newTestManager(t)
	m.AddDocument("Notes", "persistent content", nil, "")
	m.Search("persistent", 10, index.ModeAnd)

	before := m.Generation()
	m.ClearCache()
	if m.Generation() != before {
		t.Error("ClearCache must not bump the generation")
	}
	if m.CacheSnapshot().Entries != 0 {
		t.Error("cache should be empty after ClearCache")
	}
	res, _, _ := m.Search("persistent", 10, index.ModeAnd)
	if res.TotalHits != 1 {
		t.Error("index must survive a cache clear")
	}
}

func TestSnapshotCounters(t *testing.T) {
	m := newTestManager(t)
	m.AddDocument("One", "alpha beta", nil, "/f")
	m.AddDocument("Two", "beta gamma", nil, "/f")

	snap := m.Snapshot()
	if snap.Documents != 2 {
		t.Errorf("Documents = %d, want 2", snap.Documents)
	}
	// one, alpha, beta, two, gamma
	if snap.Terms != 5 {
		t.Errorf("Terms = %d, want 5", snap.Terms)
	}
	if snap.Folders != 2 {
		t.Errorf("Folders = %d, want 2 (root and /f)", snap.Folders)
	}
	if snap.Generation == 0 {
		t.Error("generation should have advanced after mutations")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testEngineConfig()
	cfg.CacheCapacity = 0
	if _, err := New(cfg); err == nil {
		t.Error("New should reject zero cache capacity")
	}
}
