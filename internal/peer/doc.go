// Package peer is a development stand-in for the game mod. It connects to
// the WebSocket listener, registers a player, optionally submits a prompt,
// and answers every action call without touching a world.
package peer
