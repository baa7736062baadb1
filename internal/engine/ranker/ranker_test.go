package ranker

import (
	"math"
	"reflect"
	"testing"
	"time"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestScorer() *Scorer {
	return NewScorer(DefaultWeights, 1.0/3600.0, 10).
		WithClock(func() time.Time { return testTime })
}

func TestScoreBounds(t *testing.T) {
	s := newTestScorer()
	stats := DocStats{
		TermFreq:     map[string]int{"go": 3, "test": 3},
		MaxFreq:      3,
		LastAccessed: testTime,
		AccessCount:  100,
	}
	// Maximal inputs: every component saturates at 1.
	got := s.Score(stats, []string{"go", "test"})
	if got < 0 || got > 1 {
		t.Fatalf("Score = %v, want within [0,1]", got)
	}
	if got != 1 {
		t.Errorf("Score with saturated components = %v, want 1", got)
	}

	// Minimal inputs.
	if got := s.Score(DocStats{}, []string{"go"}); got != 0 {
		t.Errorf("Score of empty stats = %v, want 0", got)
	}
}

func TestTermFreqComponent(t *testing.T) {
	s := newTestScorer()
	stats := DocStats{
		TermFreq: map[string]int{"go": 2, "cloud": 4},
		MaxFreq:  4,
	}
	// Only the TF component is non-zero: 2/4 * 0.5 = 0.25.
	if got := s.Score(stats, []string{"go"}); got != 0.25 {
		t.Errorf("Score = %v, want 0.25", got)
	}
	// Multi-token mass clamps at the peak frequency: (2+4)/4 → 1.
	if got := s.Score(stats, []string{"go", "cloud"}); got != 0.5 {
		t.Errorf("clamped Score = %v, want 0.5", got)
	}
}

func TestRecencyDecays(t *testing.T) {
	s := newTestScorer()
	fresh := DocStats{TermFreq: map[string]int{}, LastAccessed: testTime}
	stale := DocStats{TermFreq: map[string]int{}, LastAccessed: testTime.Add(-2 * time.Hour)}

	freshScore := s.Score(fresh, nil)
	staleScore := s.Score(stale, nil)
	if freshScore <= staleScore {
		t.Errorf("fresh %v should outscore stale %v", freshScore, staleScore)
	}
	// e^-2 * 0.3 rounded to 4 decimals.
	want := math.Round(0.3*math.Exp(-2)*10000) / 10000
	if staleScore != want {
		t.Errorf("stale score = %v, want %v", staleScore, want)
	}
}

func TestUsageSaturates(t *testing.T) {
	s := newTestScorer()
	low := DocStats{TermFreq: map[string]int{}, AccessCount: 1}
	mid := DocStats{TermFreq: map[string]int{}, AccessCount: 5}
	capped := DocStats{TermFreq: map[string]int{}, AccessCount: 10}
	over := DocStats{TermFreq: map[string]int{}, AccessCount: 1000}

	if !(s.Score(low, nil) < s.Score(mid, nil)) {
		t.Error("usage score should grow with access count")
	}
	if s.Score(capped, nil) != s.Score(over, nil) {
		t.Error("usage score should saturate at the cap")
	}
	if s.Score(capped, nil) != 0.2 {
		t.Errorf("saturated usage score = %v, want 0.2", s.Score(capped, nil))
	}
}

func TestTopKOrderingAndTies(t *testing.T) {
	scored := []ScoredDoc{
		{DocID: "doc-3", Score: 0.5},
		{DocID: "doc-1", Score: 0.5},
		{DocID: "doc-2", Score: 0.9},
		{DocID: "doc-4", Score: 0.1},
	}
	got := TopK(scored, 3)
	want := []ScoredDoc{
		{DocID: "doc-2", Score: 0.9},
		{DocID: "doc-1", Score: 0.5},
		{DocID: "doc-3", Score: 0.5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopK = %v, want %v", got, want)
	}
}

func TestTopKTieEvictionKeepsSmallerIDs(t *testing.T) {
	// More equal-score docs than k: the kept set must be the smallest IDs.
	scored := []ScoredDoc{
		{DocID: "doc-5", Score: 0.5},
		{DocID: "doc-2", Score: 0.5},
		{DocID: "doc-4", Score: 0.5},
		{DocID: "doc-1", Score: 0.5},
		{DocID: "doc-3", Score: 0.5},
	}
	got := TopK(scored, 2)
	want := []ScoredDoc{
		{DocID: "doc-1", Score: 0.5},
		{DocID: "doc-2", Score: 0.5},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopK = %v, want %v", got, want)
	}
}

func TestTopKEdgeCases(t *testing.T) {
	scored := []ScoredDoc{{DocID: "doc-1", Score: 0.5}}
	if got := TopK(scored, 0); len(got) != 0 {
		t.Errorf("TopK(0) = %v, want empty", got)
	}
	if got := TopK(nil, 5); len(got) != 0 {
		t.Errorf("TopK(nil) = %v, want empty", got)
	}
	// k larger than the candidate count returns everything.
	if got := TopK(scored, 10); len(got) != 1 {
		t.Errorf("TopK over-asks = %v, want 1 result", got)
	}
}
