package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/presence-core/internal/presence"
	"github.com/nerrad567/presence-core/internal/raddec"
)

// Intake receives decoded inbound messages. Rejections are the intake's
// business; the bridge does not report them.
type Intake interface {
	HandleRaddec(r *raddec.Raddec) error
	HandleDynamb(d *presence.Dynamb) error
	HandleStatid(s *presence.Statid) error
}

// Conn is the part of *Client a Bridge uses.
type Conn interface {
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Bridge connects the presence engine to the broker. Inbound raddecs,
// dynambs and statids are decoded and handed to an Intake; outbound events
// and dynambs are published by HandleEvent and HandleDynamb.
type Bridge struct {
	conn   Conn
	topics Topics
	qos    byte
	intake Intake
}

// NewBridge creates a Bridge publishing at qos.
func NewBridge(conn Conn, topics Topics, qos byte, intake Intake) *Bridge {
	return &Bridge{conn: conn, topics: topics, qos: qos, intake: intake}
}

// Start subscribes to the inbound topics.
func (b *Bridge) Start() error {
	subs := []struct {
		topic   string
		handler MessageHandler
	}{
		{b.topics.AllRaddecs(), b.handleRaddecs},
		{b.topics.AllDynambs(), b.handleDynambs},
		{b.topics.AllStatids(), b.handleStatids},
	}
	for _, s := range subs {
		if err := b.conn.Subscribe(s.topic, b.qos, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
	}
	return nil
}

func (b *Bridge) handleRaddecs(_ string, payload []byte) error {
	var batch []*raddec.Raddec
	if err := decodeOneOrMany(payload, &batch); err != nil {
		return err
	}
	for _, r := range batch {
		b.intake.HandleRaddec(r) //nolint:errcheck // rejections are counted by the intake
	}
	return nil
}

func (b *Bridge) handleDynambs(_ string, payload []byte) error {
	var batch []*presence.Dynamb
	if err := decodeOneOrMany(payload, &batch); err != nil {
		return err
	}
	for _, d := range batch {
		b.intake.HandleDynamb(d) //nolint:errcheck // rejections are counted by the intake
	}
	return nil
}

func (b *Bridge) handleStatids(_ string, payload []byte) error {
	var batch []*presence.Statid
	if err := decodeOneOrMany(payload, &batch); err != nil {
		return err
	}
	for _, s := range batch {
		b.intake.HandleStatid(s) //nolint:errcheck // rejections are counted by the intake
	}
	return nil
}

// decodeOneOrMany decodes a JSON object or array of objects into out.
func decodeOneOrMany[T any](payload []byte, out *[]*T) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, out); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		return nil
	}

	v := new(T)
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	*out = []*T{v}
	return nil
}

// Name identifies the bridge as a sink.
func (b *Bridge) Name() string {
	return "mqtt"
}

// HandleEvent publishes r to the topic of its first event tag.
func (b *Bridge) HandleEvent(ctx context.Context, r *raddec.Raddec) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tag := "event"
	if len(r.Events) > 0 {
		tag = r.Events[0].String()
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: marshal raddec: %w", ErrPublishFailed, err)
	}
	return b.conn.Publish(b.topics.Event(tag), payload, b.qos, false)
}

// HandleDynamb publishes an accepted dynamb.
func (b *Bridge) HandleDynamb(ctx context.Context, d *presence.Dynamb) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("%w: marshal dynamb: %w", ErrPublishFailed, err)
	}
	return b.conn.Publish(b.topics.DynambOut(), payload, b.qos, false)
}
