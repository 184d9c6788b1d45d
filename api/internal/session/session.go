// Package session implements the per-user intake conversation: a state
// machine that collects photos and prices, obtains a vision classification
// and writes one record per finished draft. External systems are injected
// as interfaces so the machine runs against fakes in tests.
package session

import (
	"context"
	"fmt"

	"resale-bot/api/internal/catalog"
)

// State of one intake conversation.
type State int

const (
	StateIdle State = iota
	StateAwaitingIdentifier
	StateAwaitingPhotos
	StateAwaitingPrice
	StateReady
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingIdentifier:
		return "awaiting_identifier"
	case StateAwaitingPhotos:
		return "awaiting_photos"
	case StateAwaitingPrice:
		return "awaiting_price"
	case StateReady:
		return "ready"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind tags an inbound user event.
type EventKind int

const (
	EventStart EventKind = iota
	EventIdentifier
	EventPhoto
	EventPriceMode
	EventPriceText
	EventSave
	EventCancel
	EventStatus
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventIdentifier:
		return "identifier"
	case EventPhoto:
		return "photo"
	case EventPriceMode:
		return "price_mode"
	case EventPriceText:
		return "price_text"
	case EventSave:
		return "save"
	case EventCancel:
		return "cancel"
	case EventStatus:
		return "status"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one dispatched user action. Text carries identifier or price
// input, Photo carries raw image bytes.
type Event struct {
	Kind  EventKind
	Text  string
	Photo []byte
}

// TextEventKind maps free message text to the event it carries in the given
// state. Outside the text-accepting states the returned kind has no
// transition and is rejected by the table.
func TextEventKind(st State) EventKind {
	switch st {
	case StateAwaitingPrice, StateReady:
		return EventPriceText
	default:
		return EventIdentifier
	}
}

// Session is the mutable per-user draft. Photos keeps submission order,
// first entry is the main image. NeedsReview accumulates price-side
// uncertainty until save.
type Session struct {
	UserID          int64
	ItemID          string
	Photos          []string
	Gender          string
	Currency        string
	FullCents       *int64
	DiscountedCents *int64
	NeedsReview     bool
	State           State
}

// Snapshot is a side-effect-free copy of the session for diagnostics.
type Snapshot struct {
	ItemID          string
	State           State
	PhotoCount      int
	Currency        string
	FullCents       *int64
	DiscountedCents *int64
	NeedsReview     bool
}

// PhotoUploader stores one photo and returns its public reference.
type PhotoUploader interface {
	Upload(ctx context.Context, itemID string, data []byte, index int) (string, error)
}

// Classifier runs the vision model over the main photo and returns its raw
// text output. Malformed output is the normalizer's problem, not an error.
type Classifier interface {
	Classify(ctx context.Context, imageURL string, vocab catalog.Vocabulary) (string, error)
}

// SequenceAllocator mints the next number for a calendar year. Must be
// atomic across processes.
type SequenceAllocator interface {
	Next(ctx context.Context, year int) (int, error)
}

// RecordWriter appends one finished record to the persistent sheet.
type RecordWriter interface {
	Append(ctx context.Context, rec catalog.Record) error
}
