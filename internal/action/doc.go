// Package action owns the remote actions a build can perform: the catalog
// of action definitions offered to the executor model, and the Correlator
// that carries individual calls to the peer and back.
//
// Correlation is by generated call id, never by send order. Each pending
// call holds a buffered channel of capacity one that is removed from the
// table before it is fulfilled, so a call resumes at most once whether it
// is resolved by a reply, by CancelAll, or by its timeout.
package action
