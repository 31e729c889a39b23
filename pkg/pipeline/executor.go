package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hmkim/agora/pkg/planner"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Runner is the agent-loop surface the executor depends on.
type Runner interface {
	Run(ctx context.Context, input string) (string, error)
}

// StepStatus is the outcome of one pipeline step.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// StepRecord captures one specialist invocation within a run.
type StepRecord struct {
	Role     planner.Role  `json:"role"`
	Status   StepStatus    `json:"status"`
	Output   string        `json:"output"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID  string       `json:"run_id"`
	Answer string       `json:"answer"`
	Steps  []StepRecord `json:"steps"`
}

// Executor sequentially invokes the specialists named in a plan, threading
// each agent's output into the next step's task, then asks the orchestrator
// to synthesize a final answer. Steps run strictly in order because each
// task depends on all prior outputs.
type Executor struct {
	specialists  map[planner.Role]Runner
	orchestrator Runner
	logger       zerolog.Logger
}

// ExecutorConfig holds executor configuration.
type ExecutorConfig struct {
	Specialists  map[planner.Role]Runner
	Orchestrator Runner
	Logger       zerolog.Logger
}

// NewExecutor creates a pipeline executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator runner is required")
	}
	for _, role := range planner.DelegatableRoles() {
		if cfg.Specialists[role] == nil {
			return nil, fmt.Errorf("specialist %s is required", role)
		}
	}

	return &Executor{
		specialists:  cfg.Specialists,
		orchestrator: cfg.Orchestrator,
		logger:       cfg.Logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Execute runs a DELEGATE plan against the original user request.
// A failing specialist does not abort the pipeline: its failure text is
// recorded in the context and the orchestrator synthesis sees it.
func (e *Executor) Execute(ctx context.Context, userInput string, plan planner.ExecutionPlan) (*Result, error) {
	if plan.Mode != planner.ModeDelegate {
		return nil, fmt.Errorf("pipeline requires a delegate plan, got %s", plan.Mode)
	}

	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run ID: %w", err)
	}

	logger := e.logger.With().Str("run_id", runID).Logger()
	logger.Info().Interface("steps", plan.Steps).Msg("Pipeline started")

	pipelineCtx := NewContext()
	records := make([]StepRecord, 0, len(plan.Steps))

	for _, role := range plan.Steps {
		specialist, ok := e.specialists[role]
		if !ok {
			// Whitelisted by the classifier, so this indicates a wiring bug.
			return nil, fmt.Errorf("no specialist registered for role %s", role)
		}

		task := buildTask(role, userInput, pipelineCtx)
		started := time.Now()

		output, err := specialist.Run(ctx, task)
		record := StepRecord{
			Role:     role,
			Duration: time.Since(started),
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			record.Status = StepFailed
			record.Error = err.Error()
			output = fmt.Sprintf("(the %s step failed: %v)", role, err)
			logger.Warn().Err(err).Str("role", string(role)).Msg("Specialist failed, continuing pipeline")
		} else {
			record.Status = StepCompleted
		}

		record.Output = output
		records = append(records, record)
		pipelineCtx.Add(role, output)

		logger.Info().
			Str("role", string(role)).
			Str("status", string(record.Status)).
			Dur("duration", record.Duration).
			Int("output_chars", len(output)).
			Msg("Pipeline step finished")
	}

	answer, err := e.synthesize(ctx, userInput, pipelineCtx)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	logger.Info().Int("steps", len(records)).Msg("Pipeline complete")

	return &Result{
		RunID:  runID,
		Answer: answer,
		Steps:  records,
	}, nil
}

// synthesize asks the orchestrator to merge all specialist outputs into the
// final answer.
func (e *Executor) synthesize(ctx context.Context, userInput string, pipelineCtx *Context) (string, error) {
	prompt := fmt.Sprintf(
		"Original user request: %s\n\n"+
			"Combine the specialist results below into a final response for the user. "+
			"If the reviewer provided feedback, incorporate it. "+
			"If a step failed, compensate where possible and mention what is missing.\n\n%s",
		userInput, pipelineCtx.Render())

	return e.orchestrator.Run(ctx, prompt)
}

// buildTask composes a specialist's task message from its role instruction,
// the original request, and every prior step's labeled output.
func buildTask(role planner.Role, userInput string, pipelineCtx *Context) string {
	task := fmt.Sprintf("Original user request: %s\n\nCurrent task: %s", userInput, roleInstruction(role))
	if pipelineCtx.Len() > 0 {
		task += "\n\nResults from previous steps:\n" + pipelineCtx.Render()
	}
	return task
}

func roleInstruction(role planner.Role) string {
	switch role {
	case planner.RoleAnalyst:
		return "Collect the data this request needs using your tools and return it in a structured form."
	case planner.RoleWriter:
		return "Write the requested document based on the request and the data provided."
	case planner.RoleReviewer:
		return "Review the produced document and return your verdict, feedback, and a revised final version."
	default:
		return "Complete the request."
	}
}
