package event

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received Event
	var wg sync.WaitGroup
	wg.Add(1)

	unsub := bus.Subscribe(SessionCreated, func(e Event) {
		received = e
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: SessionCreated, Data: SessionData{SessionID: "abcd1234"}})
	waitTimeout(t, &wg)

	if received.Type != SessionCreated {
		t.Errorf("Expected SessionCreated, got %v", received.Type)
	}
	data, ok := received.Data.(SessionData)
	if !ok || data.SessionID != "abcd1234" {
		t.Errorf("Expected SessionData for abcd1234, got %#v", received.Data)
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	unsub := bus.SubscribeAll(func(e Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: SessionCreated})
	bus.Publish(Event{Type: PipelineStarted})
	bus.Publish(Event{Type: ActionResolved})
	waitTimeout(t, &wg)

	if got := atomic.LoadInt32(&count); got != 3 {
		t.Errorf("Expected 3 events, got %d", got)
	}
}

func TestBus_TypeFiltering(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int32
	unsub := bus.Subscribe(PipelineCompleted, func(e Event) {
		atomic.AddInt32(&count, 1)
	})
	defer unsub()

	bus.PublishSync(Event{Type: PipelineFailed})
	bus.PublishSync(Event{Type: PipelineCompleted})

	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("Expected 1 matching event, got %d", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int32
	unsub := bus.Subscribe(SessionDeleted, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(Event{Type: SessionDeleted})
	unsub()
	bus.PublishSync(Event{Type: SessionDeleted})

	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("Expected 1 event before unsubscribe, got %d", got)
	}
}

func TestBus_Closed(t *testing.T) {
	bus := NewBus()

	var count int32
	bus.SubscribeAll(func(e Event) {
		atomic.AddInt32(&count, 1)
	})
	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	bus.PublishSync(Event{Type: SessionCreated})
	unsub := bus.Subscribe(SessionCreated, func(e Event) {
		atomic.AddInt32(&count, 1)
	})
	unsub()

	if got := atomic.LoadInt32(&count); got != 0 {
		t.Errorf("Expected no delivery after close, got %d", got)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}
}

func TestBus_Messages(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := bus.Messages(ctx)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}

	bus.Publish(Event{Type: ActionRequested, Data: ActionRequestedData{SessionID: "s1", CallID: "c1", Name: "we_walls"}})

	select {
	case msg := <-messages:
		msg.Ack()
		if msg.Metadata.Get("type") != string(ActionRequested) {
			t.Errorf("Expected metadata type %s, got %s", ActionRequested, msg.Metadata.Get("type"))
		}
		e, err := Decode(msg)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if e.Type != ActionRequested {
			t.Errorf("Expected ActionRequested, got %v", e.Type)
		}
		data, ok := e.Data.(map[string]any)
		if !ok || data["name"] != "we_walls" {
			t.Errorf("Unexpected decoded data: %#v", e.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for mirrored message")
	}
}
