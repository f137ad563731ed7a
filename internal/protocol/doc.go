// Package protocol defines the JSON frames exchanged with the peer over the
// WebSocket connection.
//
// Inbound frames decode into a closed set of types (Register, Prompt,
// ActionResult, Cancel) with Unknown as the fallback for anything else.
// Outbound frames are built with the constructors in outbound.go and written
// through a Sender.
package protocol
