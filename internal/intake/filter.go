package intake

import (
	"slices"

	"github.com/nerrad567/presence-core/internal/infrastructure/config"
	"github.com/nerrad567/presence-core/internal/raddec"
)

// Filter selects raddecs by transmitter and receiver. The zero Filter
// accepts everything.
type Filter struct {
	// AcceptedTransmitterIDTypes, when non-empty, lists the only transmitter
	// id types that pass.
	AcceptedTransmitterIDTypes []int

	// RejectedTransmitters lists transmitter signatures that never pass.
	RejectedTransmitters []string

	// AcceptedReceivers, when non-empty, requires at least one receiver in
	// the rssiSignature to be listed, by signature or by bare id.
	AcceptedReceivers []string

	// MinRSSI, when set, requires the strongest receiver to be at least this
	// strong.
	MinRSSI *int
}

// FilterFromConfig converts the YAML filter section.
func FilterFromConfig(c config.FilterConfig) Filter {
	return Filter{
		AcceptedTransmitterIDTypes: c.AcceptedTransmitterIDTypes,
		RejectedTransmitters:       c.RejectedTransmitters,
		AcceptedReceivers:          c.AcceptedReceivers,
		MinRSSI:                    c.MinRSSI,
	}
}

// Passes reports whether r is accepted.
func (f Filter) Passes(r *raddec.Raddec) bool {
	if len(f.AcceptedTransmitterIDTypes) > 0 &&
		!slices.Contains(f.AcceptedTransmitterIDTypes, r.TransmitterIDType) {
		return false
	}
	if slices.Contains(f.RejectedTransmitters, r.Signature()) {
		return false
	}
	if len(f.AcceptedReceivers) > 0 && !f.hasAcceptedReceiver(r) {
		return false
	}
	if f.MinRSSI != nil {
		strongest, ok := r.Strongest()
		if !ok || strongest.RSSI < *f.MinRSSI {
			return false
		}
	}
	return true
}

func (f Filter) hasAcceptedReceiver(r *raddec.Raddec) bool {
	for _, rx := range r.RSSISignature {
		if slices.Contains(f.AcceptedReceivers, rx.Signature()) ||
			slices.Contains(f.AcceptedReceivers, rx.ReceiverID) {
			return true
		}
	}
	return false
}
