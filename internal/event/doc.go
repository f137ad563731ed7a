/*
Package event provides an in-process pub/sub event system for the vibe-build
server.

Components publish lifecycle events without knowing who listens; the HTTP
side channel streams them to browsers over SSE and keeps a journal of the
most recent ones.

# Architecture

The bus keeps direct-call subscribers so event payloads retain their Go
types, and mirrors every event as JSON onto a watermill gochannel topic
(Topic) for consumers that prefer a message stream.

# Event Types

Session Events:
  - session.created: connection accepted
  - session.registered: peer name bound to a session
  - session.deleted: connection closed

Pipeline Events:
  - pipeline.started: a build run began
  - pipeline.planned: the plan validated
  - pipeline.step: a plan step started executing
  - pipeline.completed: the run finished
  - pipeline.failed: the run aborted (error or cancellation)

Action Events:
  - action.requested: an action call was sent to the peer
  - action.resolved: an action call received its outcome

# Usage

	bus := event.NewBus()
	unsub := bus.Subscribe(event.PipelineCompleted, func(e event.Event) {
	    data := e.Data.(event.PipelineCompletedData)
	    fmt.Println(data.ToolCount)
	})
	defer unsub()

	bus.Publish(event.Event{Type: event.SessionCreated, Data: event.SessionData{SessionID: "abcd1234"}})
*/
package event
