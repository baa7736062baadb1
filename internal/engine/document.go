package engine

import "time"

// Document is the unit of content managed by the engine. The text fields are
// stored verbatim; all matching happens on the tokenized form kept in the
// inverted index.
type Document struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Tags         []string  `json:"tags,omitempty"`
	FolderPath   string    `json:"folder_path"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
}

// DocumentUpdate carries a partial update. Nil fields are left unchanged.
type DocumentUpdate struct {
	Title *string  `json:"title,omitempty"`
	Body  *string  `json:"body,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// clone returns a deep copy safe to hand to callers outside the engine lock.
func (d *Document) clone() *Document {
	out := *d
	if d.Tags != nil {
		out.Tags = make([]string, len(d.Tags))
		copy(out.Tags, d.Tags)
	}
	return &out
}
