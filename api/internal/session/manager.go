package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"resale-bot/api/internal/catalog"
	"resale-bot/api/internal/price"
)

// Policy fixes the decision points that varied across draft iterations of
// the original workflow. One policy applies to the whole machine.
type Policy struct {
	// RequirePrice refuses save until at least one price value was parsed.
	RequirePrice bool
	// FlagEmptyText forces review when the model returns an empty title or
	// description.
	FlagEmptyText bool
}

// Options wires a Manager. Uploader, Classifier, Sequences and Records are
// required; zero Now/Log fall back to time.Now and slog.Default.
type Options struct {
	Uploader   PhotoUploader
	Classifier Classifier
	Sequences  SequenceAllocator
	Records    RecordWriter

	Vocab         catalog.Vocabulary
	Policy        Policy
	Allowed       []int64
	DefaultGender string
	Now           func() time.Time
	Log           *slog.Logger
}

type transitionKey struct {
	state State
	kind  EventKind
}

type handlerFunc func(ctx context.Context, s *Session, ev Event) (string, error)

// Manager owns all live sessions and dispatches events through an explicit
// (state, event) transition table. Events for one user are processed
// strictly one at a time; a second event blocks until the in-flight
// collaborator call finishes, which keeps photo indices monotonic and stops
// a save from racing a classification.
type Manager struct {
	uploader   PhotoUploader
	classifier Classifier
	sequences  SequenceAllocator
	records    RecordWriter

	vocab         catalog.Vocabulary
	policy        Policy
	allowed       map[int64]struct{}
	defaultGender string
	now           func() time.Time
	log           *slog.Logger

	table map[transitionKey]handlerFunc

	mu       sync.Mutex
	sessions map[int64]*Session
	locks    map[int64]*sync.Mutex
}

func NewManager(o Options) *Manager {
	m := &Manager{
		uploader:      o.Uploader,
		classifier:    o.Classifier,
		sequences:     o.Sequences,
		records:       o.Records,
		vocab:         o.Vocab,
		policy:        o.Policy,
		allowed:       make(map[int64]struct{}, len(o.Allowed)),
		defaultGender: o.DefaultGender,
		now:           o.Now,
		log:           o.Log,
		sessions:      make(map[int64]*Session),
		locks:         make(map[int64]*sync.Mutex),
	}
	for _, id := range o.Allowed {
		m.allowed[id] = struct{}{}
	}
	if m.defaultGender == "" {
		m.defaultGender = "M"
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.log == nil {
		m.log = slog.Default()
	}

	active := []State{StateAwaitingIdentifier, StateAwaitingPhotos, StateAwaitingPrice, StateReady}
	m.table = map[transitionKey]handlerFunc{
		{StateIdle, EventStart}:  m.onStart,
		{StateIdle, EventStatus}: m.onStatus,

		{StateAwaitingIdentifier, EventIdentifier}: m.onIdentifier,
		{StateAwaitingIdentifier, EventPhoto}:      m.onPhoto,
		{StateAwaitingPhotos, EventPhoto}:          m.onPhoto,

		{StateAwaitingPhotos, EventPriceMode}: m.onPriceMode,
		{StateAwaitingPrice, EventPriceMode}:  m.onPriceMode,
		{StateReady, EventPriceMode}:          m.onPriceMode,

		{StateAwaitingPrice, EventPriceText}: m.onPriceText,
		{StateReady, EventPriceText}:         m.onPriceText,

		{StateAwaitingPhotos, EventSave}: m.onSave,
		{StateAwaitingPrice, EventSave}:  m.onSave,
		{StateReady, EventSave}:          m.onSave,
	}
	for _, st := range active {
		m.table[transitionKey{st, EventStart}] = m.onStart
		m.table[transitionKey{st, EventCancel}] = m.onCancel
		m.table[transitionKey{st, EventStatus}] = m.onStatus
	}
	return m
}

// Handle dispatches one event for one user and returns the reply text.
// Unauthorized senders are rejected before any state is read or written.
func (m *Manager) Handle(ctx context.Context, userID int64, ev Event) (string, error) {
	if _, ok := m.allowed[userID]; !ok {
		m.log.Warn("unauthorized sender", "user", userID)
		return "", &ValidationError{Reason: "Unauthorized."}
	}

	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	s := m.session(userID)
	st := StateIdle
	if s != nil {
		st = s.State
	}
	h, ok := m.table[transitionKey{st, ev.Kind}]
	if !ok {
		return "", &ValidationError{Reason: rejectionText(st)}
	}

	m.log.Info("event", "user", userID, "state", st.String(), "kind", ev.Kind.String())
	if s == nil {
		s = &Session{UserID: userID, State: StateIdle}
	}
	return h(ctx, s, ev)
}

// StateOf reports the current state for a user, StateIdle when no session
// exists. Read-only.
func (m *Manager) StateOf(userID int64) State {
	if s := m.session(userID); s != nil {
		return s.State
	}
	return StateIdle
}

// ---------------- transitions ----------------

func (m *Manager) onStart(ctx context.Context, s *Session, _ Event) (string, error) {
	next := &Session{
		UserID: s.UserID,
		Gender: m.defaultGender,
		State:  StateAwaitingIdentifier,
	}
	m.setSession(s.UserID, next)
	return "Started a new item. Reply with an item ID, or 'auto' to assign one.", nil
}

func (m *Manager) onIdentifier(ctx context.Context, s *Session, ev Event) (string, error) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return "", &ValidationError{Reason: "Empty ID. Reply with an item ID or 'auto'."}
	}
	id := text
	if strings.EqualFold(text, "auto") {
		minted, err := m.mintID(ctx)
		if err != nil {
			return "", err
		}
		id = minted
	}
	s.ItemID = id
	s.State = StateAwaitingPhotos
	return fmt.Sprintf("Item ID %s. Send photos (first = main). When done send /prices.", id), nil
}

func (m *Manager) onPhoto(ctx context.Context, s *Session, ev Event) (string, error) {
	// Photo before an ID was assigned: allocate one so the upload has a
	// stable object name.
	if s.ItemID == "" {
		id, err := m.mintID(ctx)
		if err != nil {
			return "", err
		}
		s.ItemID = id
	}
	index := len(s.Photos) + 1
	ref, err := m.uploader.Upload(ctx, s.ItemID, ev.Photo, index)
	if err != nil {
		// Failed upload must not consume the index.
		return "", &ExternalError{Op: "photo upload", Err: err}
	}
	s.Photos = append(s.Photos, ref)
	s.State = StateAwaitingPhotos
	return fmt.Sprintf("Uploaded photo #%d. Send more, /prices for prices or /save when ready.", index), nil
}

func (m *Manager) onPriceMode(ctx context.Context, s *Session, _ Event) (string, error) {
	if len(s.Photos) == 0 {
		return "", &ValidationError{Reason: "No photos found. Send a photo first."}
	}
	s.State = StateAwaitingPrice
	return "Send price(s). Examples: 750, 750/1000, -25%, €1000", nil
}

func (m *Manager) onPriceText(ctx context.Context, s *Session, ev Event) (string, error) {
	res := price.Parse(ev.Text, s.FullCents)
	s.Currency = res.Currency
	s.FullCents = res.FullCents
	s.DiscountedCents = res.DiscountedCents
	s.NeedsReview = s.NeedsReview || res.NeedsReview
	s.State = StateReady
	if res.NeedsReview {
		return "Could not parse that price; the item will be flagged for review. Send another price or /save.", nil
	}
	return "Price recorded. /save to write to the sheet, or send another price to replace it.", nil
}

func (m *Manager) onSave(ctx context.Context, s *Session, _ Event) (string, error) {
	if len(s.Photos) == 0 {
		return "", &ValidationError{Reason: "No photos found. Send a photo first."}
	}
	if m.policy.RequirePrice && s.FullCents == nil && s.DiscountedCents == nil {
		return "", &ValidationError{Reason: "No price set. Send /prices and a price first."}
	}

	cls := m.classify(ctx, s.Photos[0])
	rec := catalog.Record{
		ItemID:          s.ItemID,
		MainPhoto:       s.Photos[0],
		ExtraPhotos:     s.Photos[1:],
		Title:           cls.Title,
		Description:     cls.Description,
		Type:            cls.Type,
		Category:        cls.Category,
		Color:           cls.Color,
		Gender:          s.Gender,
		Brand:           cls.Brand,
		Currency:        s.Currency,
		FullCents:       s.FullCents,
		DiscountedCents: s.DiscountedCents,
		NeedsReview:     catalog.Combine(s.NeedsReview, cls),
	}
	if err := m.records.Append(ctx, rec); err != nil {
		// Session stays alive so /save can be retried.
		return "", &ExternalError{Op: "record append", Err: err}
	}

	m.dropSession(s.UserID)
	s.State = StateTerminated
	return fmt.Sprintf("Saved item %s. Main photo: %s", rec.ItemID, rec.MainPhoto), nil
}

func (m *Manager) onCancel(ctx context.Context, s *Session, _ Event) (string, error) {
	m.dropSession(s.UserID)
	s.State = StateTerminated
	return "Cancelled. Use /new to start over.", nil
}

func (m *Manager) onStatus(ctx context.Context, s *Session, _ Event) (string, error) {
	if s.State == StateIdle {
		return "No draft. Use /new.", nil
	}
	snap := snapshot(s)
	return fmt.Sprintf("Item %s | state %s | photos %d | full %s | discounted %s | review %v",
		orDash(snap.ItemID), snap.State, snap.PhotoCount,
		centsText(snap.Currency, snap.FullCents), centsText(snap.Currency, snap.DiscountedCents),
		snap.NeedsReview), nil
}

// ---------------- helpers ----------------

// classify runs the vision call and normalizes its output. A transport
// failure degrades to an all-empty, review-flagged classification instead
// of blocking the save.
func (m *Manager) classify(ctx context.Context, mainPhoto string) catalog.Classification {
	raw, err := m.classifier.Classify(ctx, mainPhoto, m.vocab)
	if err != nil {
		m.log.Warn("classification failed, degrading to manual review", "err", err)
		return catalog.Classification{NeedsReview: true}
	}
	return catalog.Normalize(raw, m.vocab, m.policy.FlagEmptyText)
}

func (m *Manager) mintID(ctx context.Context) (string, error) {
	year := m.now().UTC().Year()
	seq, err := m.sequences.Next(ctx, year)
	if err != nil {
		return "", &ExternalError{Op: "sequence allocation", Err: err}
	}
	return fmt.Sprintf("%d-%04d", year, seq), nil
}

func (m *Manager) userLock(id int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *Manager) session(id int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *Manager) setSession(id int64, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
}

func (m *Manager) dropSession(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func snapshot(s *Session) Snapshot {
	return Snapshot{
		ItemID:          s.ItemID,
		State:           s.State,
		PhotoCount:      len(s.Photos),
		Currency:        s.Currency,
		FullCents:       s.FullCents,
		DiscountedCents: s.DiscountedCents,
		NeedsReview:     s.NeedsReview,
	}
}

func rejectionText(st State) string {
	switch st {
	case StateIdle:
		return "No draft. Use /new."
	case StateAwaitingIdentifier:
		return "Waiting for an item ID. Reply with an ID or 'auto'."
	case StateAwaitingPhotos:
		return "Waiting for photos. Send a photo, /prices or /save."
	default:
		return "Can't do that now. Send a price, /save or /cancel."
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func centsText(currency string, c *int64) string {
	if c == nil {
		return "-"
	}
	return fmt.Sprintf("%s%d.%02d", currency, *c/100, *c%100)
}
