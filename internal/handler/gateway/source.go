package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/scrimmage/discord-tracker-service/internal/domain/event"
	"github.com/scrimmage/discord-tracker-service/internal/service"
)

// Decoder maps a dispatch onto a raw event; a nil event means "nothing to do".
type Decoder interface {
	Decode(name string, data json.RawMessage) (event.Raw, error)
}

// Source feeds a live gateway session into the pipeline.
type Source struct {
	decoder Decoder
	sink    service.Sink
	logger  *slog.Logger
}

func NewSource(decoder Decoder, sink service.Sink, logger *slog.Logger) *Source {
	return &Source{decoder: decoder, sink: sink, logger: logger}
}

// OnDispatch runs on the gateway read loop. Decoding is synchronous so the
// state cache sees dispatches in sequence order; processing is not.
func (s *Source) OnDispatch(ctx context.Context, name string, data json.RawMessage) {
	ev, err := s.decoder.Decode(name, data)
	if err != nil {
		s.logger.Warn("DISPATCH_DECODE_FAILED", "err", err, "dispatch", name)
		return
	}
	if ev == nil {
		return
	}
	s.sink.Accept(ctx, ev)
}
