package peer

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/WilliamStanton/vibe-build/internal/protocol"
)

// Printer renders server frames for a terminal.
type Printer struct {
	w       io.Writer
	deltas  bool
	inDelta bool

	dim, info, tool, ok, bad *color.Color
}

// NewPrinter creates a printer writing to w. Raw deltas are only shown
// when deltas is set; aggregated text is always shown.
func NewPrinter(w io.Writer, deltas, noColor bool) *Printer {
	p := &Printer{
		w:      w,
		deltas: deltas,
		dim:    color.New(color.FgHiBlack),
		info:   color.New(color.FgCyan, color.Bold),
		tool:   color.New(color.FgYellow),
		ok:     color.New(color.FgGreen, color.Bold),
		bad:    color.New(color.FgRed, color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{p.dim, p.info, p.tool, p.ok, p.bad} {
			c.DisableColor()
		}
	}
	return p
}

// Frame prints one frame.
func (p *Printer) Frame(f protocol.ServerFrame) {
	if f.Type == protocol.TypeDelta {
		if p.deltas {
			fmt.Fprint(p.w, p.dim.Sprint(f.Content))
			p.inDelta = true
		}
		return
	}
	if p.inDelta {
		fmt.Fprintln(p.w)
		p.inDelta = false
	}

	switch f.Type {
	case protocol.TypeThinking:
		fmt.Fprintln(p.w, p.dim.Sprint("thinking..."))
	case protocol.TypeTextComplete:
		fmt.Fprintln(p.w, strings.TrimSpace(f.Content))
	case protocol.TypePlanReady:
		origin := "?"
		if f.Origin != nil {
			origin = f.Origin.String()
		}
		fmt.Fprintf(p.w, "%s %d steps at (%s)\n", p.info.Sprint("plan ›"), f.StepCount, origin)
	case protocol.TypeStep:
		fmt.Fprintf(p.w, "%s %s\n", p.info.Sprint("step ›"), f.Content)
	case protocol.TypeToolCall:
		fmt.Fprintf(p.w, "%s %s %s\n", p.tool.Sprint("action ›"), f.Name, p.dim.Sprint(string(f.Args)))
	case protocol.TypeDone:
		fmt.Fprintf(p.w, "%s %d actions, %d steps\n", p.ok.Sprint("done ›"), f.ToolCount, f.CompletedSteps)
	case protocol.TypeError:
		fmt.Fprintf(p.w, "%s %s\n", p.bad.Sprint("error ›"), f.Content)
	default:
		fmt.Fprintf(p.w, "%s %s\n", p.dim.Sprint(f.Type+" ›"), f.Content)
	}
}
