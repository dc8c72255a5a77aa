package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/scrimmage/discord-tracker-service/internal/domain/model"
)

// CommandStore is the remote list of the application's slash commands.
type CommandStore interface {
	ListCommands(ctx context.Context) ([]model.Command, error)
	CreateCommand(ctx context.Context, cmd model.Command) error
	EditCommand(ctx context.Context, id string, cmd model.Command) error
	DeleteCommand(ctx context.Context, id string) error
}

// DefaultCommands is the command set the service publishes.
func DefaultCommands() []model.Command {
	return []model.Command{
		{
			Name:        "register",
			Description: "Register your account to start earning rewards",
			Type:        1,
		},
	}
}

// CommandSyncer makes the remote command list match the desired set.
type CommandSyncer struct {
	store   CommandStore
	desired []model.Command
	logger  *slog.Logger
}

func NewCommandSyncer(store CommandStore, desired []model.Command, logger *slog.Logger) *CommandSyncer {
	return &CommandSyncer{store: store, desired: desired, logger: logger}
}

// Sync creates missing commands, deletes unknown ones and rewrites the rest.
// It keeps going after a single failure and reports all of them.
func (s *CommandSyncer) Sync(ctx context.Context) error {
	existing, err := s.store.ListCommands(ctx)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}

	remote := make(map[string]model.Command, len(existing))
	for _, c := range existing {
		remote[c.Name] = c
	}
	wanted := make(map[string]struct{}, len(s.desired))

	var errs []error
	for _, c := range s.desired {
		wanted[c.Name] = struct{}{}
		if current, ok := remote[c.Name]; ok {
			s.logger.Info("COMMAND_UPDATE", "name", c.Name)
			if err := s.store.EditCommand(ctx, current.ID, c); err != nil {
				errs = append(errs, fmt.Errorf("edit command %s: %w", c.Name, err))
			}
			continue
		}
		s.logger.Info("COMMAND_CREATE", "name", c.Name)
		if err := s.store.CreateCommand(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("create command %s: %w", c.Name, err))
		}
	}

	for _, c := range existing {
		if _, ok := wanted[c.Name]; ok {
			continue
		}
		s.logger.Info("COMMAND_DELETE", "name", c.Name)
		if err := s.store.DeleteCommand(ctx, c.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete command %s: %w", c.Name, err))
		}
	}

	return errors.Join(errs...)
}
