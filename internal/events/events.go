// Package events publishes case lifecycle events.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names a case lifecycle event. It is also the subject suffix.
type Type string

const (
	CaseCreated       Type = "case.created"
	CaseStatusChanged Type = "case.status_changed"
	CaseUpdated       Type = "case.updated"
	CaseArchived      Type = "case.archived"
	CaseFileUploaded  Type = "case.file_uploaded"
)

// CaseEvent is the payload published for every case change.
type CaseEvent struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	CaseID    string    `json:"case_id"`
	CaseRef   string    `json:"case_ref"`
	Program   string    `json:"program,omitempty"`
	Urgency   string    `json:"urgency,omitempty"`
	OldStatus string    `json:"old_status,omitempty"`
	NewStatus string    `json:"new_status,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCaseEvent stamps id and time.
func NewCaseEvent(t Type, caseID, caseRef string) CaseEvent {
	return CaseEvent{
		ID:        uuid.NewString(),
		Type:      t,
		CaseID:    caseID,
		CaseRef:   caseRef,
		CreatedAt: time.Now().UTC(),
	}
}

// Publisher delivers case events. Delivery is best effort: callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev CaseEvent) error
	Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, CaseEvent) error { return nil }
func (Nop) Close()                                   {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []CaseEvent
}

func (r *Recorder) Publish(_ context.Context, ev CaseEvent) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() {}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []CaseEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CaseEvent, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters the recorded events.
func (r *Recorder) OfType(t Type) []CaseEvent {
	var out []CaseEvent
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
