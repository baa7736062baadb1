// Package ranker computes per-document relevance scores and selects the
// top-K candidates through a bounded min-heap.
//
// Score = W_tf·TF + W_rec·Recency + W_use·Usage, where TF is the matched
// term-frequency mass normalised by the document's peak frequency, Recency
// is an exponential decay of time since last access, and Usage is a
// log-saturating function of the access count.
package ranker

import (
	"container/heap"
	"math"
	"sort"
	"time"
)

// Weights holds the relative weight of each relevance component.
type Weights struct {
	TermFreq float64
	Recency  float64
	Usage    float64
}

// DefaultWeights is the 0.5/0.3/0.2 split used when no config overrides it.
var DefaultWeights = Weights{TermFreq: 0.5, Recency: 0.3, Usage: 0.2}

// ScoredDoc is one ranked search result.
type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// DocStats is the per-document input to scoring.
type DocStats struct {
	// TermFreq maps each token of the document to its occurrence count.
	TermFreq map[string]int
	// MaxFreq is the highest single-token count in TermFreq.
	MaxFreq      int
	LastAccessed time.Time
	AccessCount  int
}

// Scorer computes relevance scores from tunable ranking parameters.
type Scorer struct {
	weights  Weights
	decay    float64
	usageCap int
	now      func() time.Time
}

// NewScorer creates a Scorer. decay is the λ of the recency exponential
// (per second); usageCap is the access count at which the usage component
// saturates.
func NewScorer(weights Weights, decay float64, usageCap int) *Scorer {
	return &Scorer{
		weights:  weights,
		decay:    decay,
		usageCap: usageCap,
		now:      time.Now,
	}
}

// WithClock overrides the scorer's clock. Used by tests and by the engine to
// share one clock across components.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Score computes the relevance of one document for the given distinct query
// tokens. Every component lies in [0,1], so the result lies in [0,1] for
// weights summing to 1.
func (s *Scorer) Score(stats DocStats, queryTokens []string) float64 {
	score := s.weights.TermFreq*s.termFreqScore(stats, queryTokens) +
		s.weights.Recency*s.recencyScore(stats.LastAccessed) +
		s.weights.Usage*s.usageScore(stats.AccessCount)
	return math.Round(score*10000) / 10000
}

// termFreqScore sums the document's counts for the matched query tokens and
// normalises by the peak single-token count, clamped to 1 so multi-token
// matches cannot exceed the component range.
func (s *Scorer) termFreqScore(stats DocStats, queryTokens []string) float64 {
	if stats.MaxFreq <= 0 {
		return 0
	}
	matched := 0
	for _, token := range queryTokens {
		matched += stats.TermFreq[token]
	}
	return math.Min(1, float64(matched)/float64(stats.MaxFreq))
}

// recencyScore decays exponentially with the time since last access; a
// document never accessed scores 0.
func (s *Scorer) recencyScore(lastAccessed time.Time) float64 {
	if lastAccessed.IsZero() {
		return 0
	}
	age := s.now().Sub(lastAccessed).Seconds()
	if age < 0 {
		age = 0
	}
	return math.Exp(-s.decay * age)
}

// usageScore saturates logarithmically so heavy use stops dominating.
func (s *Scorer) usageScore(count int) float64 {
	if count <= 0 {
		return 0
	}
	return math.Min(1, math.Log(1+float64(count))/math.Log(1+float64(s.usageCap)))
}

// TopK selects the k highest-scoring docs from scored, ordered by descending
// score with ties broken by ascending doc ID. A bounded min-heap keeps the
// selection at O(C log K) for C candidates.
func TopK(scored []ScoredDoc, k int) []ScoredDoc {
	if k <= 0 {
		return []ScoredDoc{}
	}
	h := &scoredDocHeap{}
	heap.Init(h)
	for _, doc := range scored {
		heap.Push(h, doc)
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ScoredDoc)
	}
	// Popping a min-heap yields ascending order, so filling back-to-front
	// gives descending score; re-check tie order explicitly for equal
	// scores.
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	return result
}

// scoredDocHeap is a min-heap whose minimum is the lowest score, with the
// larger doc ID treated as smaller on ties so equal-score eviction discards
// larger IDs first.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
