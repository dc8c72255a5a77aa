package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

func registerInteraction() *model.Interaction {
	return &model.Interaction{
		ID:          "i1",
		Token:       "tok",
		Type:        model.InteractionTypeApplicationCommand,
		CommandName: "register",
		User:        &model.User{ID: "u1", Username: "alice", GlobalName: "Alice", Avatar: "hash"},
	}
}

func TestRegistration_Success(t *testing.T) {
	reg := &fakeRegistrar{token: "secret"}
	resp := &fakeResponder{}
	h := NewRegistrationHandler(true, reg, resp, discardLogger())

	require.NoError(t, h.HandleInteraction(context.Background(), registerInteraction()))

	assert.Equal(t, []string{"u1|Alice|https://cdn.discordapp.com/avatars/u1/hash.png"}, reg.calls)
	assert.Equal(t, []string{"You are registered for rewards. Your access token: secret"}, resp.replies)
}

func TestRegistration_Disabled(t *testing.T) {
	reg := &fakeRegistrar{}
	resp := &fakeResponder{}
	h := NewRegistrationHandler(false, reg, resp, discardLogger())

	require.NoError(t, h.HandleInteraction(context.Background(), registerInteraction()))

	assert.Empty(t, reg.calls)
	assert.Equal(t, []string{replyRegistrationDisabled}, resp.replies)
}

func TestRegistration_LedgerFailureRepliesGenerically(t *testing.T) {
	resp := &fakeResponder{}
	h := NewRegistrationHandler(true, &fakeRegistrar{err: errBoom}, resp, discardLogger())

	require.NoError(t, h.HandleInteraction(context.Background(), registerInteraction()))
	assert.Equal(t, []string{replyRegistrationFailed}, resp.replies)
}

func TestRegistration_IgnoresNonCommands(t *testing.T) {
	resp := &fakeResponder{}
	h := NewRegistrationHandler(true, &fakeRegistrar{}, resp, discardLogger())

	require.NoError(t, h.HandleInteraction(context.Background(), &model.Interaction{Type: model.InteractionTypePing}))
	require.NoError(t, h.HandleInteraction(context.Background(), nil))
	assert.Empty(t, resp.replies)
}

func TestRegistration_ReplyFailureSurfaces(t *testing.T) {
	resp := &fakeResponder{err: errBoom}
	h := NewRegistrationHandler(true, &fakeRegistrar{token: "t"}, resp, discardLogger())

	err := h.HandleInteraction(context.Background(), registerInteraction())
	assert.ErrorIs(t, err, errBoom)
}

func TestCommandSyncer_Reconciles(t *testing.T) {
	store := &fakeCommandStore{existing: []model.Command{
		{ID: "1", Name: "register"},
		{ID: "2", Name: "legacy"},
	}}
	s := NewCommandSyncer(store, append(DefaultCommands(), model.Command{Name: "stats"}), discardLogger())

	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, []string{"1"}, store.edited)
	assert.Equal(t, []string{"stats"}, store.created)
	assert.Equal(t, []string{"2"}, store.deleted)
}

func TestCommandSyncer_CollectsErrors(t *testing.T) {
	store := &fakeCommandStore{
		existing: []model.Command{{ID: "1", Name: "register"}, {ID: "2", Name: "old"}},
		failEdit: errBoom,
	}
	s := NewCommandSyncer(store, DefaultCommands(), discardLogger())

	err := s.Sync(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"2"}, store.deleted, "a failed edit does not stop the rest of the sync")
}

func TestCommandSyncer_ListFailure(t *testing.T) {
	s := NewCommandSyncer(&fakeCommandStore{listErr: errBoom}, DefaultCommands(), discardLogger())
	assert.ErrorIs(t, s.Sync(context.Background()), errBoom)
}
