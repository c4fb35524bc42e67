package presence

import "github.com/nerrad567/presence-core/internal/raddec"

// ContextEntry is one node of the proximity graph returned by
// RetrieveContext. Placeholder entries for neighbours outside the requested
// set carry only an empty Nearest list.
type ContextEntry struct {
	Nearest []Neighbour    `json:"nearest"`
	Raddec  *raddec.Raddec `json:"raddec,omitempty"`
	Dynamb  *Dynamb        `json:"dynamb,omitempty"`
	Statid  *Statid        `json:"statid,omitempty"`
}

// deviceSnapshot is a copy of the device state needed to build context.
type deviceSnapshot struct {
	signature string
	raddec    *raddec.Raddec
	dynamb    *Dynamb
	statid    *Statid
}

// assembleContext builds a closed proximity graph: every signature that
// appears in a Nearest list is also a key of the result.
func assembleContext(snaps []deviceSnapshot) map[string]ContextEntry {
	out := make(map[string]ContextEntry, len(snaps))
	for _, snap := range snaps {
		out[snap.signature] = ContextEntry{
			Nearest: nearest(snap),
			Raddec:  snap.raddec,
			Dynamb:  snap.dynamb,
			Statid:  snap.statid,
		}
	}

	var stubs []string
	for _, entry := range out {
		for _, n := range entry.Nearest {
			if _, ok := out[n.Device]; !ok {
				stubs = append(stubs, n.Device)
			}
		}
	}
	for _, sig := range stubs {
		out[sig] = ContextEntry{Nearest: []Neighbour{}}
	}
	return out
}

// nearest merges the receivers of the device's latest raddec with any
// "nearest" dynamb property, keeping the strongest reading per neighbour.
func nearest(snap deviceSnapshot) []Neighbour {
	best := make(map[string]int)
	add := func(sig string, rssi int) {
		if sig == "" || sig == snap.signature {
			return
		}
		if cur, ok := best[sig]; !ok || rssi > cur {
			best[sig] = rssi
		}
	}

	if snap.raddec != nil {
		for _, rx := range snap.raddec.RSSISignature {
			add(rx.Signature(), rx.RSSI)
		}
	}
	if snap.dynamb != nil {
		for _, n := range nearestFromProperty(snap.dynamb.Properties[PropertyNearest]) {
			add(n.Device, n.RSSI)
		}
	}

	out := make([]Neighbour, 0, len(best))
	for sig, rssi := range best {
		out = append(out, Neighbour{Device: sig, RSSI: rssi})
	}
	sortNeighbours(out)
	return out
}
