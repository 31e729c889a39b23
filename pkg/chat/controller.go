package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/hmkim/agora/pkg/mcp"
	"github.com/hmkim/agora/pkg/pipeline"
	"github.com/hmkim/agora/pkg/planner"
	"github.com/rs/zerolog"
)

// quitSentinels terminate the session on case-insensitive exact match.
var quitSentinels = map[string]bool{
	"quit": true,
	"exit": true,
}

// Bridge is the shared tool connection surface the controller owns.
// Only the controller may close it.
type Bridge interface {
	Servers() []string
	Catalog() []mcp.ToolDescriptor
	Close() error
}

// Runner executes one conversational turn.
type Runner interface {
	Run(ctx context.Context, input string) (string, error)
}

// Classifier decides whether a request is answered directly or delegated.
type Classifier interface {
	Classify(ctx context.Context, userInput string) planner.ExecutionPlan
}

// Pipeline executes a delegate plan.
type Pipeline interface {
	Execute(ctx context.Context, userInput string, plan planner.ExecutionPlan) (*pipeline.Result, error)
}

// Resettable clears an agent's private conversation history.
type Resettable interface {
	Reset()
}

// Controller owns the read-eval-print cycle: it reads user input, dispatches
// to the single agent or the plan/pipeline pair, prints the result, and
// recovers from per-turn failures without terminating the session.
type Controller struct {
	bridge     Bridge
	single     Runner
	classifier Classifier
	executor   Pipeline
	resettable []Resettable

	multi            bool
	resetSpecialists bool

	in     io.Reader
	out    io.Writer
	sigCh  chan os.Signal
	logger zerolog.Logger
}

// Config holds controller configuration.
type Config struct {
	Bridge     Bridge
	Single     Runner
	Classifier Classifier
	Executor   Pipeline
	// Resettable lists the agents whose history is cleared before each
	// pipeline run. Per-turn reset is the default behavior; disable via
	// ResetSpecialists to let specialists keep memory across turns.
	Resettable       []Resettable
	Multi            bool
	ResetSpecialists bool
	// HandleSignals registers an interrupt handler so Ctrl-C aborts the
	// current turn instead of killing the process. Off in tests.
	HandleSignals bool

	In     io.Reader
	Out    io.Writer
	Logger zerolog.Logger
}

// NewController creates a session controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Bridge == nil {
		return nil, fmt.Errorf("tool bridge is required")
	}
	if cfg.Multi {
		if cfg.Classifier == nil || cfg.Executor == nil {
			return nil, fmt.Errorf("classifier and executor are required in multi-agent mode")
		}
	} else if cfg.Single == nil {
		return nil, fmt.Errorf("single agent runner is required")
	}
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	c := &Controller{
		bridge:           cfg.Bridge,
		single:           cfg.Single,
		classifier:       cfg.Classifier,
		executor:         cfg.Executor,
		resettable:       cfg.Resettable,
		multi:            cfg.Multi,
		resetSpecialists: cfg.ResetSpecialists,
		in:               cfg.In,
		out:              cfg.Out,
		logger:           cfg.Logger.With().Str("component", "chat").Logger(),
	}

	if cfg.HandleSignals {
		c.sigCh = make(chan os.Signal, 1)
		signal.Notify(c.sigCh, os.Interrupt)
	}

	return c, nil
}

// Run drives the interactive loop until a quit sentinel, EOF, or context
// cancellation. The shared tool connection is released exactly once on
// every exit path.
func (c *Controller) Run(ctx context.Context) error {
	defer func() {
		if c.sigCh != nil {
			signal.Stop(c.sigCh)
		}
		if err := c.bridge.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close tool bridge")
		}
	}()

	c.printBanner()

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go c.readLines(lines, done)

	for {
		fmt.Fprint(c.out, "You: ")

		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out, "\nGoodbye.")
			return nil
		case <-c.sigCh:
			fmt.Fprintln(c.out, "\nGoodbye.")
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out, "\nGoodbye.")
				return nil
			}

			input := strings.TrimSpace(line)
			if input == "" {
				continue
			}
			if quitSentinels[strings.ToLower(input)] {
				fmt.Fprintln(c.out, "Goodbye.")
				return nil
			}

			c.runTurn(ctx, input)
		}
	}
}

// readLines feeds input lines to the session loop until EOF or until the
// session ends with input still buffered.
func (c *Controller) readLines(lines chan<- string, done <-chan struct{}) {
	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-done:
			return
		}
	}
	close(lines)
}

// runTurn processes one user input to completion. Any failure is reported
// and the loop continues: a single bad turn never terminates the session.
func (c *Controller) runTurn(ctx context.Context, input string) {
	turnID := uuid.NewString()
	logger := c.logger.With().Str("turn_id", turnID).Logger()

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// An interrupt aborts the pending turn, not the session.
	if c.sigCh != nil {
		go func() {
			select {
			case <-c.sigCh:
				logger.Info().Msg("Turn interrupted")
				cancel()
			case <-turnCtx.Done():
			}
		}()
	}

	answer, err := c.handle(turnCtx, input)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			fmt.Fprintln(c.out, "\n[aborted]")
			return
		}
		logger.Error().Err(err).Msg("Turn failed")
		fmt.Fprintf(c.out, "\n[error] %v\n\n", err)
		return
	}

	fmt.Fprintf(c.out, "\n%s\n\n", answer)
}

func (c *Controller) handle(ctx context.Context, input string) (string, error) {
	if !c.multi {
		return c.single.Run(ctx, input)
	}

	plan := c.classifier.Classify(ctx, input)
	if plan.Mode == planner.ModeDirect {
		answer := plan.DirectAnswer
		if answer == "" {
			answer = "(empty response)"
		}
		return answer, nil
	}

	if c.resetSpecialists {
		for _, agent := range c.resettable {
			agent.Reset()
		}
	}

	result, err := c.executor.Execute(ctx, input, plan)
	if err != nil {
		return "", err
	}
	return result.Answer, nil
}

func (c *Controller) printBanner() {
	if c.multi {
		fmt.Fprintln(c.out, "=== Agora Multi-Agent System ===")
	} else {
		fmt.Fprintln(c.out, "=== Agora Agent ===")
	}

	for _, server := range c.bridge.Servers() {
		fmt.Fprintf(c.out, "[connected] %s\n", server)
	}
	if catalog := c.bridge.Catalog(); len(catalog) > 0 {
		names := make([]string, len(catalog))
		for i, tool := range catalog {
			names[i] = tool.Name
		}
		fmt.Fprintf(c.out, "Tools: %s\n", strings.Join(names, ", "))
	}

	fmt.Fprintln(c.out, "Type 'quit' or 'exit' to leave.")
	fmt.Fprintln(c.out)
}
