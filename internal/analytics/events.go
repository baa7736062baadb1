// Package analytics streams usage events to Kafka so ranking behaviour and
// query patterns can be studied offline. Event publishing is best-effort and
// never blocks or fails a request.
package analytics

import "time"

// Event types, used as the Kafka message key so events of one type land on
// one partition.
const (
	EventSearch       = "search"
	EventAutocomplete = "autocomplete"
	EventDocumentView = "document_view"
	EventDocumentAdd  = "document_add"
	EventDocumentDel  = "document_delete"
	EventFolderChange = "folder_change"
)

// SearchEvent records one executed search query.
type SearchEvent struct {
	Query      string    `json:"query"`
	Mode       string    `json:"mode"`
	TopK       int       `json:"top_k"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	CacheHit   bool      `json:"cache_hit"`
	DurationMS float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// AutocompleteEvent records one prefix completion request.
type AutocompleteEvent struct {
	Prefix      string    `json:"prefix"`
	Suggestions int       `json:"suggestions"`
	Timestamp   time.Time `json:"timestamp"`
}

// DocumentEvent records a document lifecycle action (view, add, delete).
type DocumentEvent struct {
	DocID      string    `json:"doc_id"`
	FolderPath string    `json:"folder_path,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// FolderEvent records a folder mutation.
type FolderEvent struct {
	Path      string    `json:"path"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}
