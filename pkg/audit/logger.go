// Package audit records an append-only, hash-chained trail of engine
// mutations. Each event's hash covers its canonical JSON form plus the
// previous event's hash, so any tampering with history is detectable.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/fieldsafe/sentinel/pkg/auth"
)

// EventType defines the category of the audit event.
type EventType string

const (
	EventAccess   EventType = "ACCESS"
	EventMutation EventType = "MUTATION"
	EventSystem   EventType = "SYSTEM"
)

// Event is one structured audit record.
type Event struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id"`
	Type      EventType      `json:"type"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// PrevHash links to the preceding event; Hash is the SHA-256 of this
	// event's canonical (RFC 8785) JSON with Hash itself blank.
	PrevHash string `json:"prev_hash,omitempty"`
	Hash     string `json:"hash,omitempty"`
}

// Logger is the recording interface the engine depends on.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error
}

// Trail implements Logger with an in-memory chain mirrored to a writer as
// JSON lines.
type Trail struct {
	mu     sync.Mutex
	writer io.Writer
	events []Event
	head   string
	clock  func() time.Time
}

// NewTrail creates a Trail writing to os.Stdout.
func NewTrail() *Trail {
	return NewTrailWithWriter(os.Stdout)
}

// NewTrailWithWriter creates a Trail writing to the given writer.
func NewTrailWithWriter(w io.Writer) *Trail {
	if w == nil {
		w = os.Stdout
	}
	return &Trail{writer: w, clock: time.Now}
}

// WithClock overrides the time source. Test hook.
func (t *Trail) WithClock(clock func() time.Time) *Trail {
	t.clock = clock
	return t
}

// Record appends an event to the chain. The actor comes from the request
// context; system-originated events (sweeps, bootstrap) record "system".
func (t *Trail) Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error {
	actorID := "system"
	if actor, err := auth.ActorFrom(ctx); err == nil {
		actorID = actor.ID
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	evt := Event{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Type:      eventType,
		Action:    action,
		Resource:  resource,
		Timestamp: t.clock().UTC(),
		Metadata:  metadata,
		PrevHash:  t.head,
	}
	hash, err := eventHash(evt)
	if err != nil {
		return err
	}
	evt.Hash = hash

	t.events = append(t.events, evt)
	t.head = hash

	line, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = t.writer.Write(append([]byte("AUDIT: "), append(line, '\n')...))
	return err
}

// ChainHead returns the hash of the most recent event, or "" when empty.
func (t *Trail) ChainHead() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.head
}

// Verify recomputes the chain and reports whether every link holds.
func (t *Trail) Verify() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := ""
	for i, evt := range t.events {
		if evt.PrevHash != prev {
			return fmt.Errorf("audit: event %d prev_hash mismatch", i)
		}
		stored := evt.Hash
		evt.Hash = ""
		recomputed, err := eventHash(evt)
		if err != nil {
			return err
		}
		if recomputed != stored {
			return fmt.Errorf("audit: event %d hash mismatch", i)
		}
		prev = stored
	}
	return nil
}

// QueryFilter narrows a trail query.
type QueryFilter struct {
	Resource  string
	StartTime *time.Time
	EndTime   *time.Time
}

// Query returns matching events in append order.
func (t *Trail) Query(f QueryFilter) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Event
	for _, evt := range t.events {
		if f.Resource != "" && evt.Resource != f.Resource {
			continue
		}
		if f.StartTime != nil && evt.Timestamp.Before(*f.StartTime) {
			continue
		}
		if f.EndTime != nil && evt.Timestamp.After(*f.EndTime) {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// eventHash computes the SHA-256 of the event's RFC 8785 canonical JSON,
// with the Hash field blank.
func eventHash(evt Event) (string, error) {
	evt.Hash = ""
	raw, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("audit: marshal event: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("audit: canonicalize event: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
