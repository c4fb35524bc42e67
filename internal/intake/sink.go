package intake

import (
	"context"

	"github.com/nerrad567/presence-core/internal/presence"
	"github.com/nerrad567/presence-core/internal/raddec"
)

// Sink receives presence events. HandleEvent is called from the dispatcher
// goroutine only, one event at a time. The raddec is shared between sinks and
// must not be modified.
type Sink interface {
	Name() string
	HandleEvent(ctx context.Context, r *raddec.Raddec) error
}

// DynambSink is implemented by sinks that also want accepted dynambs.
type DynambSink interface {
	HandleDynamb(ctx context.Context, d *presence.Dynamb) error
}

// Decoder extracts device properties from the packets of a raddec. Returning
// nil means nothing was decoded.
type Decoder interface {
	Decode(r *raddec.Raddec) map[string]any
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(r *raddec.Raddec) map[string]any

// Decode calls f(r).
func (f DecoderFunc) Decode(r *raddec.Raddec) map[string]any {
	return f(r)
}
