package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/scrimmage/discord-tracker-service/internal/domain/event"
	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFetcher struct {
	mu       sync.Mutex
	messages map[string]*model.Message
	users    map[string]*model.User
	members  map[string]*model.Member
	err      error
	calls    []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		messages: map[string]*model.Message{},
		users:    map[string]*model.User{},
		members:  map[string]*model.Member{},
	}
}

func (f *fakeFetcher) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeFetcher) FetchMessage(_ context.Context, channelID, messageID string) (*model.Message, error) {
	f.record("message:" + channelID + "/" + messageID)
	if f.err != nil {
		return nil, f.err
	}
	if m, ok := f.messages[messageID]; ok {
		return m, nil
	}
	return nil, model.ErrNotFound
}

func (f *fakeFetcher) FetchUser(_ context.Context, userID string) (*model.User, error) {
	f.record("user:" + userID)
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, model.ErrNotFound
}

func (f *fakeFetcher) FetchMember(_ context.Context, guildID, userID string) (*model.Member, error) {
	f.record("member:" + guildID + "/" + userID)
	if f.err != nil {
		return nil, f.err
	}
	if m, ok := f.members[userID]; ok {
		return m, nil
	}
	return nil, model.ErrNotFound
}

type ledgerCall struct {
	Op        string
	UserID    string
	EventType string
	DedupeKey string
}

type fakeLedger struct {
	mu    sync.Mutex
	calls []ledgerCall
	fail  map[string]error
	block chan struct{}
}

func (l *fakeLedger) write(ctx context.Context, c ledgerCall) error {
	if l.block != nil {
		select {
		case <-l.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
	if err, ok := l.fail[c.EventType]; ok {
		return err
	}
	return nil
}

func (l *fakeLedger) TrackOnce(ctx context.Context, userID, eventType, dedupeKey string, _ map[string]any) error {
	return l.write(ctx, ledgerCall{Op: opTrackOnce, UserID: userID, EventType: eventType, DedupeKey: dedupeKey})
}

func (l *fakeLedger) Track(ctx context.Context, userID, eventType string, _ map[string]any) error {
	return l.write(ctx, ledgerCall{Op: opTrack, UserID: userID, EventType: eventType})
}

func (l *fakeLedger) Calls() []ledgerCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledgerCall(nil), l.calls...)
}

// recordingDispatcher captures submissions synchronously.
type recordingDispatcher struct {
	mu        sync.Mutex
	submitted []event.Trackable
}

func (d *recordingDispatcher) Submit(ev event.Trackable) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitted = append(d.submitted, ev)
}

func (d *recordingDispatcher) InFlight() int { return 0 }

func (d *recordingDispatcher) Drain(context.Context) error { return nil }

func (d *recordingDispatcher) Submitted() []event.Trackable {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]event.Trackable(nil), d.submitted...)
}

type fakeInteractions struct {
	mu      sync.Mutex
	handled []*model.Interaction
	err     error
}

func (h *fakeInteractions) HandleInteraction(_ context.Context, in *model.Interaction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, in)
	return h.err
}

type fakeRegistrar struct {
	token string
	err   error
	calls []string
}

func (r *fakeRegistrar) RegisterUser(_ context.Context, userID, displayName, avatarRef string) (string, error) {
	r.calls = append(r.calls, userID+"|"+displayName+"|"+avatarRef)
	return r.token, r.err
}

type fakeResponder struct {
	replies []string
	err     error
}

func (r *fakeResponder) RespondEphemeral(_ context.Context, _ *model.Interaction, content string) error {
	r.replies = append(r.replies, content)
	return r.err
}

type fakeCommandStore struct {
	existing []model.Command
	created  []string
	edited   []string
	deleted  []string
	listErr  error
	failEdit error
}

func (s *fakeCommandStore) ListCommands(context.Context) ([]model.Command, error) {
	return s.existing, s.listErr
}

func (s *fakeCommandStore) CreateCommand(_ context.Context, cmd model.Command) error {
	s.created = append(s.created, cmd.Name)
	return nil
}

func (s *fakeCommandStore) EditCommand(_ context.Context, id string, _ model.Command) error {
	s.edited = append(s.edited, id)
	return s.failEdit
}

func (s *fakeCommandStore) DeleteCommand(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

var errBoom = errors.New("boom")
