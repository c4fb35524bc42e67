package raddec

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func testRaddec(rssi ...int) *Raddec {
	r := &Raddec{
		TransmitterID:     "fee150bada55",
		TransmitterIDType: IDTypeEUI48,
		Timestamp:         time.UnixMilli(1760860800000),
	}
	for i, v := range rssi {
		r.RSSISignature = append(r.RSSISignature, Receiver{
			ReceiverID:     []string{"rx-a", "rx-b", "rx-c", "rx-d"}[i],
			ReceiverIDType: IDTypeEUI64,
			RSSI:           v,
		})
	}
	r.SortRSSISignature()
	return r
}

// ============================================================
// Signature
// ============================================================

func TestSignature(t *testing.T) {
	if got := Signature("fee150bada55", 2); got != "fee150bada55/2" {
		t.Errorf("Signature() = %q, want %q", got, "fee150bada55/2")
	}
}

func TestParseSignature(t *testing.T) {
	tests := []struct {
		name     string
		sig      string
		wantID   string
		wantType int
		wantErr  bool
	}{
		{name: "valid", sig: "fee150bada55/2", wantID: "fee150bada55", wantType: 2},
		{name: "id with slash", sig: "a/b/3", wantID: "a/b", wantType: 3},
		{name: "missing type", sig: "fee150bada55/", wantErr: true},
		{name: "missing id", sig: "/2", wantErr: true},
		{name: "no separator", sig: "fee150bada55", wantErr: true},
		{name: "non-numeric type", sig: "fee150bada55/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, idType, err := ParseSignature(tt.sig)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSignature) {
					t.Errorf("ParseSignature(%q) error = %v, want ErrInvalidSignature", tt.sig, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSignature(%q) error = %v", tt.sig, err)
			}
			if id != tt.wantID || idType != tt.wantType {
				t.Errorf("ParseSignature(%q) = %q, %d, want %q, %d", tt.sig, id, idType, tt.wantID, tt.wantType)
			}
		})
	}
}

// ============================================================
// Validate
// ============================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Raddec)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Raddec) {}},
		{name: "missing id", mutate: func(r *Raddec) { r.TransmitterID = "" }, wantErr: true},
		{name: "negative type", mutate: func(r *Raddec) { r.TransmitterIDType = -1 }, wantErr: true},
		{name: "no receivers", mutate: func(r *Raddec) { r.RSSISignature = nil }, wantErr: true},
		{name: "receiver without id", mutate: func(r *Raddec) { r.RSSISignature[0].ReceiverID = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRaddec(-60)
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidRaddec) {
				t.Errorf("Validate() error = %v, want ErrInvalidRaddec", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}

// ============================================================
// Merge
// ============================================================

func TestSortRSSISignatureTieBreak(t *testing.T) {
	r := testRaddec(-70, -70, -50)
	want := []string{"rx-c/1", "rx-a/1", "rx-b/1"}
	for i, rx := range r.RSSISignature {
		if rx.Signature() != want[i] {
			t.Errorf("RSSISignature[%d] = %s, want %s", i, rx.Signature(), want[i])
		}
	}
}

func TestMergeKeepsStrongestPerReceiver(t *testing.T) {
	a := testRaddec(-70, -80)
	b := testRaddec(-75, -60)

	a.Merge(b)

	if len(a.RSSISignature) != 2 {
		t.Fatalf("len(RSSISignature) = %d, want 2", len(a.RSSISignature))
	}
	if got := a.ReceiverSignature(); got != "rx-b/1" {
		t.Errorf("ReceiverSignature() = %s, want rx-b/1", got)
	}
	if a.RSSISignature[0].RSSI != -60 || a.RSSISignature[1].RSSI != -70 {
		t.Errorf("RSSISignature = %+v, want rx-b -60 then rx-a -70", a.RSSISignature)
	}
}

func TestMergeAddsNewReceivers(t *testing.T) {
	a := testRaddec(-70)
	b := &Raddec{
		TransmitterID:     a.TransmitterID,
		TransmitterIDType: a.TransmitterIDType,
		RSSISignature:     []Receiver{{ReceiverID: "rx-z", ReceiverIDType: 1, RSSI: -40}},
	}

	a.Merge(b)

	if len(a.RSSISignature) != 2 {
		t.Fatalf("len(RSSISignature) = %d, want 2", len(a.RSSISignature))
	}
	if got := a.ReceiverSignature(); got != "rx-z/1" {
		t.Errorf("ReceiverSignature() = %s, want rx-z/1", got)
	}
}

func TestMergePacketsDeduplicates(t *testing.T) {
	a := testRaddec(-70)
	a.Packets = []string{"aa", "bb"}
	b := testRaddec(-70)
	b.Packets = []string{"bb", "cc"}

	a.Merge(b)

	want := []string{"aa", "bb", "cc"}
	if len(a.Packets) != len(want) {
		t.Fatalf("Packets = %v, want %v", a.Packets, want)
	}
	for i := range want {
		if a.Packets[i] != want[i] {
			t.Errorf("Packets[%d] = %s, want %s", i, a.Packets[i], want[i])
		}
	}
}

func TestMergeKeepsEarliestTimestamp(t *testing.T) {
	a := testRaddec(-70)
	b := testRaddec(-70)
	b.Timestamp = a.Timestamp.Add(-time.Second)

	a.Merge(b)
	if !a.Timestamp.Equal(b.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", a.Timestamp, b.Timestamp)
	}

	c := testRaddec(-70)
	c.Timestamp = a.Timestamp.Add(time.Minute)
	a.Merge(c)
	if !a.Timestamp.Equal(b.Timestamp) {
		t.Errorf("Timestamp after later merge = %v, want %v", a.Timestamp, b.Timestamp)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	a := testRaddec(-70, -60)
	a.Packets = []string{"aa"}
	before := a.Clone()

	a.Merge(before.Clone())

	if len(a.RSSISignature) != len(before.RSSISignature) {
		t.Fatalf("len(RSSISignature) = %d, want %d", len(a.RSSISignature), len(before.RSSISignature))
	}
	for i := range a.RSSISignature {
		if a.RSSISignature[i] != before.RSSISignature[i] {
			t.Errorf("RSSISignature[%d] = %+v, want %+v", i, a.RSSISignature[i], before.RSSISignature[i])
		}
	}
	if len(a.Packets) != 1 {
		t.Errorf("Packets = %v, want [aa]", a.Packets)
	}
}

func TestMergePacketsLeavesSignature(t *testing.T) {
	a := testRaddec(-70)
	b := testRaddec(-40)
	b.Packets = []string{"dd"}
	b.Timestamp = a.Timestamp.Add(-time.Second)

	a.MergePackets(b)

	if a.RSSISignature[0].RSSI != -70 {
		t.Errorf("RSSI = %d, want -70", a.RSSISignature[0].RSSI)
	}
	if a.Timestamp.Equal(b.Timestamp) {
		t.Error("MergePackets() changed timestamp")
	}
	if !a.HasPacket("dd") {
		t.Error("HasPacket(dd) = false, want true")
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := testRaddec(-70)
	a.Packets = []string{"aa"}
	a.ProtocolSpecificData = map[string]any{"k": "v"}
	c := a.Clone()

	c.RSSISignature[0].RSSI = 0
	c.Packets[0] = "zz"
	c.ProtocolSpecificData["k"] = "changed"

	if a.RSSISignature[0].RSSI != -70 || a.Packets[0] != "aa" || a.ProtocolSpecificData["k"] != "v" {
		t.Error("Clone() shares state with the original")
	}
}

// ============================================================
// JSON
// ============================================================

func TestRaddecJSON(t *testing.T) {
	r := testRaddec(-62)
	r.Packets = []string{"061bee150bada55"}
	r.Events = []EventKind{EventAppearance, EventNewData}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if fields["timestamp"] != float64(1760860800000) {
		t.Errorf("timestamp = %v, want 1760860800000", fields["timestamp"])
	}
	events, ok := fields["events"].([]any)
	if !ok || len(events) != 2 || events[0] != "appearance" || events[1] != "new-data" {
		t.Errorf("events = %v, want [appearance new-data]", fields["events"])
	}

	var back Raddec
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back.Signature() != r.Signature() || !back.Timestamp.Equal(r.Timestamp) {
		t.Errorf("Unmarshal() = %s at %v, want %s at %v", back.Signature(), back.Timestamp, r.Signature(), r.Timestamp)
	}
}

func TestRaddecJSONNumericEvents(t *testing.T) {
	data := []byte(`{"transmitterId":"a","transmitterIdType":2,"rssiSignature":[],"events":[0,3]}`)

	var r Raddec
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !r.HasEvent(EventAppearance) || !r.HasEvent(EventKeepAlive) {
		t.Errorf("Events = %v, want [appearance keep-alive]", r.Events)
	}
	if !r.Timestamp.IsZero() {
		t.Errorf("Timestamp = %v, want zero", r.Timestamp)
	}
}

func TestRaddecJSONUnknownEvent(t *testing.T) {
	data := []byte(`{"transmitterId":"a","transmitterIdType":2,"events":["vanished"]}`)

	var r Raddec
	if err := json.Unmarshal(data, &r); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("Unmarshal() error = %v, want ErrUnknownEvent", err)
	}
}

// ============================================================
// EventKind
// ============================================================

func TestParseEventKind(t *testing.T) {
	for _, k := range AllEventKinds() {
		got, err := ParseEventKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseEventKind(%q) = %v, %v, want %v", k.String(), got, err, k)
		}
	}
	if got, err := ParseEventKind("packets"); err != nil || got != EventNewData {
		t.Errorf("ParseEventKind(packets) = %v, %v, want new-data", got, err)
	}
}

func TestSortEvents(t *testing.T) {
	got := SortEvents([]EventKind{EventNewData, EventAppearance, EventNewData})
	if len(got) != 2 || got[0] != EventAppearance || got[1] != EventNewData {
		t.Errorf("SortEvents() = %v, want [appearance new-data]", got)
	}
}

func TestNewPackets(t *testing.T) {
	a := testRaddec(-70)
	a.Packets = []string{"aa", "bb"}
	b := testRaddec(-70)
	b.Packets = []string{"bb"}

	got := a.NewPackets(b)
	if len(got) != 1 || got[0] != "aa" {
		t.Errorf("NewPackets() = %v, want [aa]", got)
	}
	if got := a.NewPackets(nil); len(got) != 2 {
		t.Errorf("NewPackets(nil) = %v, want all packets", got)
	}
}
