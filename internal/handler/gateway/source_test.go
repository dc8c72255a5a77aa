package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scrimmage/discord-tracker-service/internal/domain/event"
)

type stubDecoder struct {
	ev  event.Raw
	err error
}

func (d stubDecoder) Decode(string, json.RawMessage) (event.Raw, error) { return d.ev, d.err }

type sinkFunc func(context.Context, event.Raw)

func (f sinkFunc) Accept(ctx context.Context, ev event.Raw) { f(ctx, ev) }

func TestSourceForwardsDecodedEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	want := &event.ThreadCreate{}

	cases := []struct {
		name    string
		decoder stubDecoder
		want    []event.Raw
	}{
		{"event", stubDecoder{ev: want}, []event.Raw{want}},
		{"state only", stubDecoder{}, nil},
		{"malformed", stubDecoder{err: errors.New("bad json")}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []event.Raw
			src := NewSource(tc.decoder, sinkFunc(func(_ context.Context, ev event.Raw) {
				got = append(got, ev)
			}), logger)

			src.OnDispatch(context.Background(), "THREAD_CREATE", json.RawMessage(`{}`))
			assert.Equal(t, tc.want, got)
		})
	}
}
