package progress

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/observability"
)

type EventType string

const (
	EventConnected EventType = "connected"
	EventHeartbeat EventType = "heartbeat"
	EventProgress  EventType = "progress"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
)

// Event is the message delivered to progress subscribers.
type Event struct {
	Type       EventType `json:"type"`
	Stage      string    `json:"stage,omitempty"`
	Percentage int       `json:"percentage"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Terminal reports whether no further events follow for the run.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// EventFromStatus maps a status record onto the event pushed to clients.
func EventFromStatus(s models.ProcessingStatus) Event {
	ev := Event{
		Type:       EventProgress,
		Stage:      string(s.State),
		Percentage: s.Progress,
		Message:    s.Message,
		Timestamp:  s.UpdatedAt.UTC(),
	}
	switch s.State {
	case models.StateCompleted:
		ev.Type = EventComplete
	case models.StateError:
		ev.Type = EventError
		if s.Error != "" {
			ev.Message = s.Error
		}
	}
	return ev
}

// Publisher delivers events for a document to whoever listens.
type Publisher interface {
	Publish(ctx context.Context, documentID string, ev Event) error
}

type Subscription struct {
	ID         string
	UserID     string
	DocumentID string
	C          <-chan Event

	ch chan Event
}

// Broadcaster is the in-process registry of live subscriptions, keyed by
// document and connection.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription
	buffer int
	seq    atomic.Uint64
	log    *logrus.Logger
}

func NewBroadcaster(buffer int, log *logrus.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broadcaster{subs: make(map[string]map[string]*Subscription), buffer: buffer, log: log}
}

func (b *Broadcaster) Subscribe(userID, documentID string) *Subscription {
	ch := make(chan Event, b.buffer)
	sub := &Subscription{
		ID:         userID + ":" + documentID + ":" + strconv.FormatUint(b.seq.Add(1), 10),
		UserID:     userID,
		DocumentID: documentID,
		C:          ch,
		ch:         ch,
	}

	b.mu.Lock()
	if b.subs[documentID] == nil {
		b.subs[documentID] = make(map[string]*Subscription)
	}
	b.subs[documentID][sub.ID] = sub
	b.mu.Unlock()

	observability.ProgressSubscribers.Inc()
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to call twice.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sub.DocumentID]
	if _, ok := subs[sub.ID]; !ok {
		return
	}
	delete(subs, sub.ID)
	if len(subs) == 0 {
		delete(b.subs, sub.DocumentID)
	}
	close(sub.ch)
	observability.ProgressSubscribers.Dec()
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (b *Broadcaster) Publish(_ context.Context, documentID string, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs[documentID] {
		select {
		case sub.ch <- ev:
		default:
			if b.log != nil {
				b.log.WithFields(logrus.Fields{
					"document_id":  documentID,
					"subscription": sub.ID,
					"event":        ev.Type,
				}).Warn("progress subscriber is slow, event dropped")
			}
		}
	}
	return nil
}

// Count returns the number of live subscriptions for a document.
func (b *Broadcaster) Count(documentID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[documentID])
}
