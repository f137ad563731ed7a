// Package session holds per-connection state: conversational history,
// the single-flight busy guard, the cancel flag, and the action correlator.
//
// Each Session guards its own fields with its own mutex; the Registry lock
// only covers the id and peer-name maps. Lock order is Registry then Session.
package session
