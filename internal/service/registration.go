package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

const (
	replyRegistrationDisabled = "Registration is disabled"
	replyRegistrationFailed   = "Registration failed, please try again later"
	replyRegistered           = "You are registered for rewards. Your access token: %s"
)

// Registrar enrolls a platform user with the rewards ledger.
type Registrar interface {
	RegisterUser(ctx context.Context, userID, displayName, avatarRef string) (string, error)
}

// InteractionResponder replies to a command interaction visibly only to its invoker.
type InteractionResponder interface {
	RespondEphemeral(ctx context.Context, in *model.Interaction, content string) error
}

// InteractionHandler reacts to slash-command interactions.
type InteractionHandler interface {
	HandleInteraction(ctx context.Context, in *model.Interaction) error
}

// RegistrationHandler serves the opt-in registration command. It sits
// outside the tracking pipeline and is the only user-facing error path.
type RegistrationHandler struct {
	enabled   bool
	registrar Registrar
	responder InteractionResponder
	logger    *slog.Logger
}

func NewRegistrationHandler(enabled bool, registrar Registrar, responder InteractionResponder, logger *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		enabled:   enabled,
		registrar: registrar,
		responder: responder,
		logger:    logger,
	}
}

func (h *RegistrationHandler) HandleInteraction(ctx context.Context, in *model.Interaction) error {
	if in == nil || in.Type != model.InteractionTypeApplicationCommand {
		return nil
	}

	if !h.enabled {
		return h.reply(ctx, in, replyRegistrationDisabled)
	}

	if in.User == nil {
		return fmt.Errorf("registration: interaction %s has no user", in.ID)
	}

	token, err := h.registrar.RegisterUser(ctx, in.User.ID, in.User.DisplayName(), in.User.AvatarURL())
	if err != nil {
		h.logger.Error("USER_REGISTRATION_FAILED", "err", err, "user_id", in.User.ID)
		return h.reply(ctx, in, replyRegistrationFailed)
	}

	h.logger.Info("USER_REGISTERED", "user_id", in.User.ID, "command", in.CommandName)
	return h.reply(ctx, in, fmt.Sprintf(replyRegistered, token))
}

func (h *RegistrationHandler) reply(ctx context.Context, in *model.Interaction, content string) error {
	if err := h.responder.RespondEphemeral(ctx, in, content); err != nil {
		return fmt.Errorf("registration: reply to interaction %s: %w", in.ID, err)
	}
	return nil
}
