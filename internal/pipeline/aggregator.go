package pipeline

import (
	"strings"

	"github.com/WilliamStanton/vibe-build/internal/protocol"
)

// Aggregator buffers streamed text and sends it to the peer in whole
// chunks at flush points.
type Aggregator struct {
	sender protocol.Sender
	buf    strings.Builder
	all    strings.Builder
}

// NewAggregator creates an aggregator that flushes through sender.
func NewAggregator(sender protocol.Sender) *Aggregator {
	return &Aggregator{sender: sender}
}

// Append adds a text delta to the buffer.
func (a *Aggregator) Append(delta string) {
	a.buf.WriteString(delta)
	a.all.WriteString(delta)
}

// Flush sends the buffer as one text_content_complete frame and clears
// it. An empty buffer sends nothing.
func (a *Aggregator) Flush() error {
	if a.buf.Len() == 0 {
		return nil
	}
	text := a.buf.String()
	a.buf.Reset()
	return a.sender.Send(protocol.TextComplete(text))
}

// Text returns everything appended since the aggregator was created.
func (a *Aggregator) Text() string {
	return a.all.String()
}
