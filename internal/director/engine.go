// Package director runs the round state machine: after each assistant turn
// in the host conversation it asks the guidance model for the next
// narrative direction and injects it as a new user turn.
package director

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"director/internal/config"
	"director/internal/filter"
	"director/internal/llm"
	"director/internal/logging"
	"director/internal/prompt"
)

// State is the engine's externally visible state.
type State struct {
	Running      bool
	CurrentRound int
	TotalRounds  int
	Generating   bool
	LastError    string
}

// Reviewer lets an operator approve, edit, or skip a direction before it is
// injected.
type Reviewer interface {
	// Review returns the (possibly edited) text and whether to inject it.
	Review(ctx context.Context, draft string) (string, bool, error)
}

// Generator is the slice of the LLM client the engine uses.
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message, cfg llm.GenerateConfig, onDelta llm.DeltaFunc) (string, error)
}

// Deps wires the engine to its collaborators. Config, preset, and turns are
// provider funcs so every round sees current values without restarts.
type Deps struct {
	Config func() config.Config
	Preset func() (prompt.Preset, bool)

	Assembler *prompt.Assembler
	Client    Generator

	// Env produces the assembly environment for a round.
	Env func(round int) (prompt.Env, error)

	// Inject sends the direction into the conversation as a user turn,
	// fire-and-forget.
	Inject func(text string)

	// AwaitReady blocks until the host looks idle. Optional.
	AwaitReady func(ctx context.Context, start, finish time.Duration)

	// Review gates each direction when review mode is on. Optional.
	Review Reviewer

	// OnStateChange fires after every state transition. Optional.
	OnStateChange func(State)
}

// Engine owns the round state machine. All state transitions happen under
// one mutex; the round body runs in its own goroutine and re-checks that it
// is still the current round before anything irreversible.
type Engine struct {
	deps Deps

	mu     sync.Mutex
	state  State
	seq    int // identifies the current round goroutine
	cancel context.CancelFunc
}

// ErrNotStartable reports an unmet Start precondition.
var ErrNotStartable = errors.New("director cannot start")

// NewEngine creates an engine with a clean slate: not running, round zero.
func NewEngine(deps Deps) *Engine {
	return &Engine{deps: deps}
}

// State returns a snapshot of the engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start validates preconditions, resets the round counter, and fires the
// first round immediately.
func (e *Engine) Start() error {
	cfg := e.deps.Config()
	if err := e.checkStartable(cfg); err != nil {
		return err
	}

	e.mu.Lock()
	if e.state.Running {
		e.mu.Unlock()
		return fmt.Errorf("%w: already running", ErrNotStartable)
	}
	e.state = State{
		Running:     true,
		TotalRounds: cfg.Director.TotalRounds,
	}
	e.mu.Unlock()
	e.notify()

	logging.Engine("started: %d rounds", cfg.Director.TotalRounds)
	e.trigger()
	return nil
}

// checkStartable verifies the engine has everything a round needs before
// any state changes.
func (e *Engine) checkStartable(cfg config.Config) error {
	if !cfg.Director.Enabled {
		return fmt.Errorf("%w: directing is disabled", ErrNotStartable)
	}
	preset, ok := e.deps.Preset()
	if !ok {
		return fmt.Errorf("%w: no preset selected", ErrNotStartable)
	}
	if strings.TrimSpace(preset.SystemPrompt) == "" {
		return fmt.Errorf("%w: preset %q has an empty system prompt", ErrNotStartable, preset.Name)
	}
	if cfg.LLM.Model == "" {
		return fmt.Errorf("%w: no model configured", ErrNotStartable)
	}
	if cfg.LLM.Transport == string(llm.TransportProxy) && cfg.LLM.Endpoint == "" {
		return fmt.Errorf("%w: proxy transport needs an endpoint", ErrNotStartable)
	}
	if cfg.LLM.Transport == string(llm.TransportDirect) && cfg.LLM.APIKey == "" {
		return fmt.Errorf("%w: direct transport needs an API key", ErrNotStartable)
	}
	if cfg.Director.TotalRounds <= 0 {
		return fmt.Errorf("%w: total rounds must be positive", ErrNotStartable)
	}
	return nil
}

// OnTurnComplete triggers the next round. Safe to call from any goroutine;
// triggers while stopped are ignored.
func (e *Engine) OnTurnComplete() {
	e.trigger()
}

// Stop halts the run and reports how many rounds ran. Idempotent; an
// in-flight generation is cancelled.
func (e *Engine) Stop() int {
	e.mu.Lock()
	rounds := e.state.CurrentRound
	if !e.state.Running && e.cancel == nil {
		e.mu.Unlock()
		return rounds
	}
	e.state.Running = false
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()
	e.notify()

	logging.Engine("stopped after %d rounds", rounds)
	return rounds
}

// trigger begins a new round if the engine is running, superseding any
// round still in flight.
func (e *Engine) trigger() {
	e.mu.Lock()
	if !e.state.Running {
		e.mu.Unlock()
		logging.EngineDebug("trigger ignored: not running")
		return
	}

	// Every round up to the total has already started; the in-flight final
	// round keeps the injection, and starting another would overrun the
	// configured count.
	if e.state.CurrentRound >= e.state.TotalRounds {
		round := e.state.CurrentRound
		e.mu.Unlock()
		logging.EngineDebug("trigger ignored: all %d rounds started", round)
		return
	}

	// A fresh trigger supersedes whatever is in flight.
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.seq++
	seq := e.seq

	e.state.CurrentRound++
	e.state.Generating = true
	round := e.state.CurrentRound
	total := e.state.TotalRounds
	e.mu.Unlock()
	e.notify()

	logging.Engine("round %d/%d starting", round, total)
	go e.runRound(ctx, seq, round, total)
}

// current reports whether the calling round goroutine is still the one the
// engine cares about.
func (e *Engine) current(seq int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Running && e.seq == seq
}

// finishRound clears the generating flag for the given round goroutine.
func (e *Engine) finishRound(seq int) {
	e.mu.Lock()
	if e.seq == seq {
		e.state.Generating = false
		e.cancel = nil
	}
	e.mu.Unlock()
	e.notify()
}

// failRun records err and stops the run.
func (e *Engine) failRun(seq int, err error) {
	summary := llm.Summary(err)
	logging.EngineError("round failed: %v (%s)", err, summary)
	e.mu.Lock()
	if e.seq == seq {
		e.state.Generating = false
		e.state.Running = false
		e.state.LastError = summary
		e.cancel = nil
	}
	e.mu.Unlock()
	e.notify()
}

// runRound is the body of one director round.
func (e *Engine) runRound(ctx context.Context, seq, round, total int) {
	defer func() {
		if ctx.Err() != nil {
			logging.Engine("round %d superseded or cancelled", round)
		}
	}()

	cfg := e.deps.Config()

	// Let the host finish its own generation before we read the log.
	if cfg.Director.WaitForHost && e.deps.AwaitReady != nil {
		e.deps.AwaitReady(ctx, cfg.WaitStart(), cfg.WaitFinish())
	}
	if !e.current(seq) || ctx.Err() != nil {
		e.finishRound(seq)
		return
	}

	preset, ok := e.deps.Preset()
	if !ok {
		e.failRun(seq, fmt.Errorf("preset deselected mid-run"))
		return
	}
	env, err := e.deps.Env(round)
	if err != nil {
		e.failRun(seq, fmt.Errorf("failed to read conversation: %w", err))
		return
	}
	env.Round = round

	messages := e.deps.Assembler.Assemble(preset, env)
	messages = filter.NewChain(cfg.Filters).Apply(messages)

	direction, err := e.deps.Client.Generate(ctx, messages, e.generateConfig(cfg), nil)
	if err != nil {
		if llm.IsCancellation(err) {
			e.finishRound(seq)
			return
		}
		e.failRun(seq, err)
		return
	}

	if strings.TrimSpace(direction) == "" {
		logging.EngineWarn("round %d: empty direction, nothing to inject", round)
		e.completeRound(seq, round, total)
		return
	}

	// The outgoing outline window is independent of the prompt window.
	outline := cfg.Director.Outline
	if outline.Text != "" && (outline.OutgoingRounds == 0 || round <= outline.OutgoingRounds) {
		direction = outline.Text + "\n\n" + direction
	}

	if cfg.Director.ReviewMode && e.deps.Review != nil {
		edited, accept, err := e.deps.Review.Review(ctx, direction)
		if err != nil {
			if llm.IsCancellation(err) {
				e.finishRound(seq)
				return
			}
			e.failRun(seq, fmt.Errorf("review failed: %w", err))
			return
		}
		if !accept {
			logging.Engine("round %d: direction skipped in review", round)
			e.completeRound(seq, round, total)
			return
		}
		direction = edited
	}

	if !e.current(seq) || ctx.Err() != nil {
		e.finishRound(seq)
		return
	}

	// The last round stops the engine before the injected turn's reply can
	// re-trigger it.
	e.completeRound(seq, round, total)
	logging.Engine("round %d: injecting direction (%d chars)", round, len(direction))
	e.deps.Inject(direction)
}

// completeRound clears the generating flag and auto-stops after the final
// round.
func (e *Engine) completeRound(seq, round, total int) {
	e.mu.Lock()
	if e.seq == seq {
		e.state.Generating = false
		e.cancel = nil
		if round >= total {
			e.state.Running = false
			logging.Engine("final round %d complete, run finished", round)
		}
	}
	e.mu.Unlock()
	e.notify()
}

// generateConfig maps the config layer onto a per-call client config.
func (e *Engine) generateConfig(cfg config.Config) llm.GenerateConfig {
	return llm.GenerateConfig{
		Transport:   llm.Transport(cfg.LLM.Transport),
		Vendor:      llm.Vendor(cfg.LLM.Vendor),
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		Stream:      false,
		Timeout:     cfg.LLMTimeout(),
	}
}

func (e *Engine) notify() {
	if e.deps.OnStateChange != nil {
		e.deps.OnStateChange(e.State())
	}
}
