// Package message implements the RELOAD message PDUs.
//
// A Message is a forwarding header, a payload and a signature block:
//
//	+---------------------+  token, overlay, ttl, reserved, fragment, version,
//	| forwarding header   |  length (24 bits), transaction id, flags,
//	|                     |  via list, destination list, route log, code
//	+---------------------+
//	| payload <0..2^24-1> |  the encoded Body for the message code
//	+---------------------+
//	| signature           |  algorithm, signer identity, value
//	+---------------------+
//
// The payload is kept as raw bytes inside Message so that relays never
// re-encode it. Body and SetBody convert between the raw payload and the typed
// bodies defined here.
//
// The signature covers the overlay, the transaction id and the payload, none
// of which change hop by hop, so a message signed at its origin verifies at
// its destination even though the TTL and the via list were rewritten on the
// way.
package message
