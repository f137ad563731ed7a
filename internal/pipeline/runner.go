package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"github.com/WilliamStanton/vibe-build/internal/action"
	"github.com/WilliamStanton/vibe-build/internal/event"
	"github.com/WilliamStanton/vibe-build/internal/protocol"
	"github.com/WilliamStanton/vibe-build/internal/provider"
	"github.com/WilliamStanton/vibe-build/internal/session"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

var (
	// ErrBusy is returned when the session already has an active run.
	ErrBusy = errors.New("build already in progress")
	// ErrCancelled aborts a run after the player cancelled it.
	ErrCancelled = errors.New("build cancelled by player")
	// ErrNoPlan is returned when the planner finished without submitting a plan.
	ErrNoPlan = errors.New("planner did not call submit_plan")
)

// Defaults used when Config leaves a limit unset.
const (
	DefaultPlannerMaxTokens   = 16384
	DefaultExecutorMaxTokens  = 16384
	DefaultFinalizerMaxTokens = 1024
	DefaultMaxRounds          = 50
)

// Request is one build request from the player.
type Request struct {
	Prompt   string
	Position types.Position
}

// Config holds generation settings for a run.
type Config struct {
	// Model is a "provider/model" string; empty selects the provider default.
	Model string

	PlannerMaxTokens   int
	ExecutorMaxTokens  int
	FinalizerMaxTokens int

	// MaxRounds bounds model responses per executor step.
	MaxRounds int
}

// ConfigFrom extracts pipeline settings from the application config.
func ConfigFrom(cfg *types.Config) Config {
	return Config{
		Model:              cfg.Model,
		PlannerMaxTokens:   cfg.Pipeline.PlannerMaxTokens,
		ExecutorMaxTokens:  cfg.Pipeline.ExecutorMaxTokens,
		FinalizerMaxTokens: cfg.Pipeline.FinalizerMaxTokens,
		MaxRounds:          cfg.Pipeline.ExecutorMaxRounds,
	}
}

func (c *Config) applyDefaults() {
	if c.PlannerMaxTokens <= 0 {
		c.PlannerMaxTokens = DefaultPlannerMaxTokens
	}
	if c.ExecutorMaxTokens <= 0 {
		c.ExecutorMaxTokens = DefaultExecutorMaxTokens
	}
	if c.FinalizerMaxTokens <= 0 {
		c.FinalizerMaxTokens = DefaultFinalizerMaxTokens
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
}

// Runner drives sessions through planning, execution and finalization.
type Runner struct {
	completer provider.Completer
	catalog   *action.Catalog
	tools     []*schema.ToolInfo
	cfg       Config
	bus       *event.Bus
}

// Option configures a Runner.
type Option func(*Runner)

// WithBus publishes pipeline events on bus.
func WithBus(bus *event.Bus) Option {
	return func(r *Runner) { r.bus = bus }
}

// NewRunner creates a runner that generates through completer and offers
// the executor every action in catalog.
func NewRunner(completer provider.Completer, catalog *action.Catalog, cfg Config, opts ...Option) *Runner {
	cfg.applyDefaults()
	r := &Runner{
		completer: completer,
		catalog:   catalog,
		tools:     catalog.ToolInfos(),
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run claims the session and runs the pipeline to completion on the
// calling goroutine. It returns ErrBusy, changing nothing, if the session
// already has an active run. Any other failure has already been reported
// to the peer as an error frame when Run returns.
func (r *Runner) Run(ctx context.Context, s *session.Session, req Request) error {
	if !s.TryBegin() {
		return ErrBusy
	}
	return r.run(ctx, s, req)
}

// Start claims the session and runs the pipeline on a new goroutine. The
// returned channel receives the run's outcome.
func (r *Runner) Start(ctx context.Context, s *session.Session, req Request) (<-chan error, error) {
	if !s.TryBegin() {
		return nil, ErrBusy
	}
	done := make(chan error, 1)
	go func() {
		done <- r.run(ctx, s, req)
	}()
	return done, nil
}

func (r *Runner) run(ctx context.Context, s *session.Session, req Request) error {
	log := s.Logger()
	start := time.Now()
	log.Info().
		Str("prompt", req.Prompt).
		Stringer("position", req.Position).
		Msg("Build started")
	r.publish(event.PipelineStarted, event.PipelineStartedData{
		SessionID: s.ID,
		Prompt:    req.Prompt,
		Position:  req.Position,
	})

	out, err := r.build(ctx, s, req)
	// The session is free before the peer sees the terminal frame, so a
	// prompt sent in reply to done or error starts a new run.
	s.End()
	if err == nil {
		err = s.Send(protocol.Done(out.toolCount, out.steps))
	}
	if err != nil {
		r.fail(s, err)
		return err
	}

	log.Info().
		Int("toolCount", out.toolCount).
		Int("steps", out.steps).
		Dur("elapsed", time.Since(start)).
		Msg("Build done")
	r.publish(event.PipelineCompleted, event.PipelineCompletedData{
		SessionID:      s.ID,
		ToolCount:      out.toolCount,
		CompletedSteps: out.steps,
	})
	return nil
}

// outcome is what a successful build reports in its done frame.
type outcome struct {
	toolCount int
	steps     int
}

// build runs plan, execute and finalize. Panics are returned as errors.
func (r *Runner) build(ctx context.Context, s *session.Session, req Request) (out outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panic: %v", rec)
		}
	}()

	plan, err := r.plan(ctx, s, req)
	if err != nil {
		return out, err
	}

	toolCount, err := r.execute(ctx, s, req, plan)
	if err != nil {
		return out, err
	}

	if err := r.finalize(ctx, s, req, plan, toolCount); err != nil {
		return out, err
	}
	return outcome{toolCount: toolCount, steps: len(plan.Steps)}, nil
}

// fail logs a run failure and reports it to the peer.
func (r *Runner) fail(s *session.Session, err error) {
	log := s.Logger()
	cancelled := errors.Is(err, ErrCancelled)
	if cancelled {
		log.Info().Msg("Build cancelled by player")
	} else {
		log.Error().Err(err).Msg("Build failed")
	}

	if sendErr := s.Send(protocol.Error(errorText(err))); sendErr != nil {
		log.Debug().Err(sendErr).Msg("Could not deliver error frame")
	}
	r.publish(event.PipelineFailed, event.PipelineFailedData{
		SessionID: s.ID,
		Error:     err.Error(),
		Cancelled: cancelled,
	})
}

func (r *Runner) publish(t event.EventType, data any) {
	if r.bus != nil {
		r.bus.Publish(event.Event{Type: t, Data: data})
	}
}

// errorText capitalizes an error message for display in game chat.
func errorText(err error) string {
	msg := err.Error()
	first, size := utf8.DecodeRuneInString(msg)
	if first == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(first)) + msg[size:]
}
