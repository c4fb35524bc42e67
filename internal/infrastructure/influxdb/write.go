package influxdb

import (
	"context"
	"strconv"
	"strings"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/presence-core/internal/presence"
	"github.com/nerrad567/presence-core/internal/raddec"
)

// Measurement names.
const (
	MeasurementEvent  = "presence_event"
	MeasurementDynamb = "dynamb"
)

// Name identifies the client as an intake sink.
func (c *Client) Name() string {
	return "influxdb"
}

// HandleEvent writes one point per presence event.
func (c *Client) HandleEvent(ctx context.Context, r *raddec.Raddec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writer.WritePoint(EventPoint(c.siteID, r))
	return nil
}

// HandleDynamb writes the numeric and boolean properties of d. A dynamb with
// none of those is skipped.
func (c *Client) HandleDynamb(ctx context.Context, d *presence.Dynamb) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if p := DynambPoint(c.siteID, d); p != nil {
		c.writer.WritePoint(p)
	}
	return nil
}

// EventPoint builds the point for a presence event. The event tags are
// joined into one tag; the strongest receiver is a tag too so that
// location queries stay cheap.
func EventPoint(siteID string, r *raddec.Raddec) *write.Point {
	tags := map[string]string{
		"site":   siteID,
		"device": r.Signature(),
		"events": eventTag(r.Events),
	}
	fields := map[string]any{
		"receivers": len(r.RSSISignature),
		"packets":   len(r.Packets),
	}
	if strongest, ok := r.Strongest(); ok {
		tags["receiver"] = strongest.Signature()
		fields["rssi"] = strongest.RSSI
	}
	return write.NewPoint(MeasurementEvent, tags, fields, r.Timestamp)
}

func eventTag(events []raddec.EventKind) string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.String()
	}
	return strings.Join(names, ",")
}

// DynambPoint builds the point for a dynamb, or returns nil if no property
// is numeric or boolean. Numeric arrays become one field per element, e.g.
// acceleration_0.
func DynambPoint(siteID string, d *presence.Dynamb) *write.Point {
	fields := make(map[string]any, len(d.Properties))
	for key, v := range d.Properties {
		addField(fields, key, v)
	}
	if len(fields) == 0 {
		return nil
	}

	tags := map[string]string{
		"site":   siteID,
		"device": d.Signature(),
	}
	return write.NewPoint(MeasurementDynamb, tags, fields, d.Timestamp)
}

func addField(fields map[string]any, key string, v any) {
	switch val := v.(type) {
	case float64, float32, int, int64, int32, uint, uint64, bool:
		fields[key] = val
	case []any:
		for i, elem := range val {
			switch elem.(type) {
			case float64, int, int64, bool:
				fields[key+"_"+strconv.Itoa(i)] = elem
			}
		}
	case []float64:
		for i, elem := range val {
			fields[key+"_"+strconv.Itoa(i)] = elem
		}
	}
}
