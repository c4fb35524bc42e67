package raddec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Identifier types for transmitters and receivers.
const (
	IDTypeUnknown = 0
	IDTypeEUI64   = 1
	IDTypeEUI48   = 2
	IDTypeRND48   = 3
	IDTypeTID96   = 4
	IDTypeEPC96   = 5
	IDTypeUUID16  = 6
	IDTypeUUID32  = 7
	IDTypeUUID128 = 8
	IDTypeEURID32 = 9
)

// signatureSeparator joins an id and its id type.
const signatureSeparator = "/"

// Signature renders an id and id type as "id/type".
func Signature(id string, idType int) string {
	return id + signatureSeparator + strconv.Itoa(idType)
}

// ParseSignature splits a signature back into id and id type.
func ParseSignature(sig string) (string, int, error) {
	i := strings.LastIndex(sig, signatureSeparator)
	if i <= 0 || i == len(sig)-1 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidSignature, sig)
	}
	idType, err := strconv.Atoi(sig[i+1:])
	if err != nil || idType < 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidSignature, sig)
	}
	return sig[:i], idType, nil
}

// Receiver is one entry of an rssiSignature.
type Receiver struct {
	ReceiverID        string `json:"receiverId"`
	ReceiverIDType    int    `json:"receiverIdType"`
	RSSI              int    `json:"rssi"`
	NumberOfDecodings int    `json:"numberOfDecodings,omitempty"`
}

// Signature returns the receiver's "id/type" signature.
func (r Receiver) Signature() string {
	return Signature(r.ReceiverID, r.ReceiverIDType)
}

// Raddec is a single radio decoding of a transmitter.
type Raddec struct {
	TransmitterID        string
	TransmitterIDType    int
	RSSISignature        []Receiver
	Packets              []string
	Timestamp            time.Time
	ProtocolSpecificData map[string]any
	Events               []EventKind
}

// Signature returns the transmitter's "id/type" signature.
func (r *Raddec) Signature() string {
	return Signature(r.TransmitterID, r.TransmitterIDType)
}

// Validate checks that the raddec can be handled by the store.
func (r *Raddec) Validate() error {
	if r.TransmitterID == "" {
		return fmt.Errorf("%w: missing transmitterId", ErrInvalidRaddec)
	}
	if r.TransmitterIDType < 0 {
		return fmt.Errorf("%w: negative transmitterIdType", ErrInvalidRaddec)
	}
	if len(r.RSSISignature) == 0 {
		return fmt.Errorf("%w: empty rssiSignature", ErrInvalidRaddec)
	}
	for i, rx := range r.RSSISignature {
		if rx.ReceiverID == "" {
			return fmt.Errorf("%w: rssiSignature[%d] missing receiverId", ErrInvalidRaddec, i)
		}
	}
	return nil
}

// Strongest returns the strongest receiver, or false when there are none.
// The rssiSignature must already be sorted.
func (r *Raddec) Strongest() (Receiver, bool) {
	if len(r.RSSISignature) == 0 {
		return Receiver{}, false
	}
	return r.RSSISignature[0], true
}

// ReceiverSignature returns the signature of the strongest receiver, or ""
// when there are no receivers.
func (r *Raddec) ReceiverSignature() string {
	rx, ok := r.Strongest()
	if !ok {
		return ""
	}
	return rx.Signature()
}

// HasEvent reports whether the raddec is tagged with kind.
func (r *Raddec) HasEvent(kind EventKind) bool {
	for _, k := range r.Events {
		if k == kind {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (r *Raddec) Clone() *Raddec {
	if r == nil {
		return nil
	}
	c := *r
	if r.RSSISignature != nil {
		c.RSSISignature = append([]Receiver(nil), r.RSSISignature...)
	}
	if r.Packets != nil {
		c.Packets = append([]string(nil), r.Packets...)
	}
	if r.Events != nil {
		c.Events = append([]EventKind(nil), r.Events...)
	}
	if r.ProtocolSpecificData != nil {
		c.ProtocolSpecificData = make(map[string]any, len(r.ProtocolSpecificData))
		for k, v := range r.ProtocolSpecificData {
			c.ProtocolSpecificData[k] = v
		}
	}
	return &c
}

// SortRSSISignature orders receivers strongest-first. Equal RSSI values are
// ordered by receiver signature so that the result is deterministic.
func (r *Raddec) SortRSSISignature() {
	sortReceivers(r.RSSISignature)
}

func sortReceivers(rxs []Receiver) {
	sort.SliceStable(rxs, func(i, j int) bool {
		if rxs[i].RSSI != rxs[j].RSSI {
			return rxs[i].RSSI > rxs[j].RSSI
		}
		return rxs[i].Signature() < rxs[j].Signature()
	})
}

// Merge folds other into r. For each receiver the strongest reading is kept,
// packets are unioned without duplicates and the earlier timestamp wins.
// The rssiSignature is re-sorted afterwards.
func (r *Raddec) Merge(other *Raddec) {
	if other == nil {
		return
	}

	index := make(map[string]int, len(r.RSSISignature))
	for i, rx := range r.RSSISignature {
		index[rx.Signature()] = i
	}
	for _, rx := range other.RSSISignature {
		i, ok := index[rx.Signature()]
		if !ok {
			index[rx.Signature()] = len(r.RSSISignature)
			r.RSSISignature = append(r.RSSISignature, rx)
			continue
		}
		existing := &r.RSSISignature[i]
		if rx.RSSI > existing.RSSI {
			existing.RSSI = rx.RSSI
		}
		if rx.NumberOfDecodings > existing.NumberOfDecodings {
			existing.NumberOfDecodings = rx.NumberOfDecodings
		}
	}
	sortReceivers(r.RSSISignature)

	r.MergePackets(other)

	if !other.Timestamp.IsZero() && (r.Timestamp.IsZero() || other.Timestamp.Before(r.Timestamp)) {
		r.Timestamp = other.Timestamp
	}
}

// MergePackets unions other's packets into r without touching the
// rssiSignature or timestamp.
func (r *Raddec) MergePackets(other *Raddec) {
	if other == nil || len(other.Packets) == 0 {
		return
	}
	for _, p := range other.Packets {
		if !r.HasPacket(p) {
			r.Packets = append(r.Packets, p)
		}
	}
}

// HasPacket reports whether packet is already present.
func (r *Raddec) HasPacket(packet string) bool {
	for _, p := range r.Packets {
		if p == packet {
			return true
		}
	}
	return false
}

// wireRaddec is the JSON representation of a Raddec.
type wireRaddec struct {
	TransmitterID        string         `json:"transmitterId"`
	TransmitterIDType    int            `json:"transmitterIdType"`
	RSSISignature        []Receiver     `json:"rssiSignature"`
	Packets              []string       `json:"packets,omitempty"`
	Timestamp            int64          `json:"timestamp,omitempty"`
	ProtocolSpecificData map[string]any `json:"protocolSpecificData,omitempty"`
	Events               []EventKind    `json:"events,omitempty"`
}

// MarshalJSON encodes the raddec with a Unix millisecond timestamp.
func (r Raddec) MarshalJSON() ([]byte, error) {
	w := wireRaddec{
		TransmitterID:        r.TransmitterID,
		TransmitterIDType:    r.TransmitterIDType,
		RSSISignature:        r.RSSISignature,
		Packets:              r.Packets,
		ProtocolSpecificData: r.ProtocolSpecificData,
		Events:               r.Events,
	}
	if w.RSSISignature == nil {
		w.RSSISignature = []Receiver{}
	}
	if !r.Timestamp.IsZero() {
		w.Timestamp = r.Timestamp.UnixMilli()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire representation. A missing timestamp leaves
// Timestamp zero.
func (r *Raddec) UnmarshalJSON(data []byte) error {
	var w wireRaddec
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Raddec{
		TransmitterID:        w.TransmitterID,
		TransmitterIDType:    w.TransmitterIDType,
		RSSISignature:        w.RSSISignature,
		Packets:              w.Packets,
		ProtocolSpecificData: w.ProtocolSpecificData,
		Events:               w.Events,
	}
	if w.Timestamp != 0 {
		r.Timestamp = time.UnixMilli(w.Timestamp)
	}
	return nil
}

// NewPackets returns the packets of r that are absent from than.
func (r *Raddec) NewPackets(than *Raddec) []string {
	var out []string
	for _, p := range r.Packets {
		if than == nil || !than.HasPacket(p) {
			out = append(out, p)
		}
	}
	return out
}
