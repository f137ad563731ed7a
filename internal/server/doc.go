// Package server hosts the game-facing WebSocket endpoint and the HTTP
// side channel.
//
// # WebSocket
//
// Every connection gets its own session. Frames are JSON text messages:
//
//	register       {"type":"register","playerName":"Steve"}
//	prompt         {"type":"prompt","content":"build a hut","playerPosition":{"x":0,"y":64,"z":0}}
//	tool_result    {"type":"tool_result","toolCallId":"...","result":"{\"success\":true,\"message\":\"ok\"}"}
//	cancel         {"type":"cancel"}
//
// The read loop never blocks on a build: prompts start the pipeline on its
// own goroutine, so action replies and cancels keep flowing while a run
// waits for them. Outbound writes are serialized per connection.
//
// # Side channel
//
//	GET  /, /image-input      image upload page
//	GET  /health              {"ok":true,"sessions":N}
//	GET  /event               Server-Sent Events stream of lifecycle events
//	GET  /api/network         {"lanIp":"192.168.1.5","webPort":8787}
//	GET  /api/sessions        live session snapshots
//	GET  /api/events          recently published events
//	POST /api/image-to-build  multipart image upload routed to a player's session
//	GET  /api/qr?text=URL     PNG QR code for an http(s) URL
package server
