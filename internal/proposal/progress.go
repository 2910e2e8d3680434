package proposal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deckly-app/deckly/internal/models"
	"gorm.io/gorm"
)

const defaultSubscriberBuffer = 16

// Event is one progress notification for a proposal.
type Event struct {
	ProposalID string                `json:"proposal_id"`
	Status     models.ProposalStatus `json:"status"`
	Progress   int                   `json:"progress"`
	Message    string                `json:"message,omitempty"`
	Error      string                `json:"error,omitempty"`
	At         time.Time             `json:"at"`
}

// Terminal reports whether no further events follow for this attempt.
func (e Event) Terminal() bool {
	return e.Status == models.ProposalStatusCompleted || e.Status == models.ProposalStatusError
}

// ProgressReporter persists a progress checkpoint.
type ProgressReporter interface {
	Report(ctx context.Context, ev Event) error
}

// DBReporter writes checkpoints onto the proposal row.
type DBReporter struct {
	db *gorm.DB
}

// NewDBReporter returns a reporter backed by db.
func NewDBReporter(db *gorm.DB) *DBReporter {
	return &DBReporter{db: db}
}

// Report stores status, progress and message for the proposal.
func (r *DBReporter) Report(ctx context.Context, ev Event) error {
	res := r.db.WithContext(ctx).
		Model(&models.Proposal{}).
		Where("id = ?", ev.ProposalID).
		Updates(map[string]any{
			"status":           ev.Status,
			"progress":         ev.Progress,
			"progress_message": ev.Message,
			"updated_at":       ev.At,
		})
	if res.Error != nil {
		return fmt.Errorf("proposal: report progress: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Hub fans progress events out to in-process subscribers. Publish never
// blocks; a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	buffer int
}

// NewHub constructs a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{subs: make(map[string]map[chan Event]struct{}), buffer: buffer}
}

// Subscribe registers for events of one proposal. The returned cancel func
// unsubscribes and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(proposalID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	set, ok := h.subs[proposalID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[proposalID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(proposalID, ch) })
	}
}

func (h *Hub) unsubscribe(proposalID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[proposalID]
	if !ok {
		return
	}
	if _, found := set[ch]; !found {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(h.subs, proposalID)
	}
}

// Publish delivers ev to current subscribers without waiting.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.ProposalID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of subscribers for a proposal.
func (h *Hub) Subscribers(proposalID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[proposalID])
}
