package audit

import (
	"context"
	"time"
)

// Event is one security-relevant action. UserID is empty for pre-auth events.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	UserID    string         `json:"user_id,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	IP        string         `json:"ip"`
	Details   map[string]any `json:"details,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// Record is the at-rest form of an Event: details are an encrypted blob.
type Record struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Details   string
	Timestamp time.Time
}

// Appender persists audit records.
type Appender interface {
	InsertAuditEntry(ctx context.Context, rec Record) error
}

// EncryptingSink encrypts event details and appends the record. Failures go
// to OnError and are never returned to the emitter.
type EncryptingSink struct {
	Cipher   *Cipher
	Store    Appender
	NewID    func() string
	OnError  func(event Event, err error)
	Timeout  time.Duration
	OnStored func(event Event)
}

func (s *EncryptingSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.Store == nil || s.Cipher == nil {
		return
	}
	if event.Details == nil {
		event.Details = map[string]any{}
	}

	blob, err := s.Cipher.Encrypt(event.Details)
	if err != nil {
		s.fail(event, err)
		return
	}

	rec := Record{
		UserID:    event.UserID,
		Action:    event.Action,
		Resource:  event.Resource,
		IP:        event.IP,
		Details:   blob,
		Timestamp: event.Timestamp,
	}
	if s.NewID != nil {
		rec.ID = s.NewID()
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	if err := s.Store.InsertAuditEntry(ctx, rec); err != nil {
		s.fail(event, err)
		return
	}
	if s.OnStored != nil {
		s.OnStored(event)
	}
}

func (s *EncryptingSink) fail(event Event, err error) {
	if s.OnError != nil {
		s.OnError(event, err)
	}
}
