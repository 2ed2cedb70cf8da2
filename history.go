package imagetruth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one persisted analysis.
type HistoryEntry struct {
	ID         string    `json:"id"` // UUIDv7, time-ordered and distinct
	ImageRef   string    `json:"image_ref"`
	Name       string    `json:"name"`
	Verdict    Verdict   `json:"verdict"`
	IsAI       bool      `json:"is_ai"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// History persists confident analyses.
type History interface {
	Save(ctx context.Context, entry HistoryEntry) error
	// List returns the newest entries first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]HistoryEntry, error)
}

// HistoryStats are the totals shown above the history list.
type HistoryStats struct {
	Total int `json:"total"`
	Real  int `json:"real"`
	AI    int `json:"ai"`
}

// ShouldPersist reports whether a result is confident enough to keep:
// not uncertain and confidence at least minConfidence.
func ShouldPersist(r FusionResult, minConfidence float64) bool {
	return !r.IsUncertain && r.Confidence >= minConfidence
}

// NewHistoryEntry builds an entry for a fusion result.
func NewHistoryEntry(ref, name string, r FusionResult, now time.Time) HistoryEntry {
	return HistoryEntry{
		ID:         newEntryID(),
		ImageRef:   ref,
		Name:       name,
		Verdict:    VerdictOf(r),
		IsAI:       r.IsAI,
		Confidence: r.Confidence,
		CreatedAt:  now.UTC(),
	}
}

func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Summarize counts entries per verdict. Uncertain entries only count toward Total.
func Summarize(entries []HistoryEntry) HistoryStats {
	stats := HistoryStats{Total: len(entries)}
	for _, e := range entries {
		switch e.Verdict {
		case VerdictReal:
			stats.Real++
		case VerdictAI:
			stats.AI++
		}
	}
	return stats
}

// MemoryHistory is an in-process History. Safe for concurrent use.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

// Save appends entry.
func (h *MemoryHistory) Save(_ context.Context, entry HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

// List returns up to limit entries, newest first.
func (h *MemoryHistory) List(_ context.Context, limit int) ([]HistoryEntry, error) {
	h.mu.Lock()
	out := make([]HistoryEntry, 0, len(h.entries))
	for i := len(h.entries) - 1; i >= 0; i-- {
		out = append(out, h.entries[i])
	}
	h.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
