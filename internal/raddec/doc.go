// Package raddec defines the radio decoding ("raddec") observation handled by
// presence-core.
//
// A raddec reports that a transmitter was heard by one or more receivers,
// each with a received signal strength. The receivers are kept in an
// rssiSignature ordered strongest-first, so the first entry is always the
// receiver nearest to the transmitter.
//
// # Identity
//
// A transmitter is identified by its id and id type together, rendered as a
// signature string:
//
//	fee150bada55/2
//
// The same format identifies receivers, which lets the context graph treat a
// receiver as just another device.
//
// # Merging
//
// Several raddecs for the same transmitter can be merged into one
// representative record. Merging keeps the strongest reading per receiver,
// unions the packets (dropping duplicates) and keeps the earliest timestamp.
//
// # Wire format
//
// Raddecs are exchanged as JSON with Unix millisecond timestamps:
//
//	{
//	  "transmitterId": "fee150bada55",
//	  "transmitterIdType": 2,
//	  "rssiSignature": [{"receiverId": "001bc50940810000", "receiverIdType": 1, "rssi": -62}],
//	  "packets": ["061bee150bada55"],
//	  "timestamp": 1760860800000,
//	  "events": ["appearance"]
//	}
package raddec
