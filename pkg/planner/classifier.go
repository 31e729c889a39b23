package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hmkim/agora/pkg/agent"
	"github.com/rs/zerolog"
)

const classifierInstructions = `Analyze the user request below and decide how to handle it.

Respond with a single JSON object and nothing else.

For a simple greeting or question that needs no specialist:
{"mode": "direct", "direct_answer": "your answer"}

For a complex task that needs specialists:
{"mode": "delegate", "steps": ["analyst", "writer"]}

Rules:
- If data must be collected, put "analyst" first.
- If a document or report must be written, include "writer".
- If quality review is needed, put "reviewer" last.
- Pick only the specialists the task actually needs.

User request:
%s`

// Classifier asks the orchestrator to turn a user request into an
// ExecutionPlan. The model's output is untrusted input: it is schema
// validated and whitelist checked before use.
type Classifier struct {
	provider agent.Provider
	settings agent.ModelSettings
	profile  agent.Profile
	logger   zerolog.Logger
}

// ClassifierConfig holds classifier configuration.
type ClassifierConfig struct {
	Provider agent.Provider
	Settings agent.ModelSettings
	Logger   zerolog.Logger
}

// NewClassifier creates a plan classifier backed by the orchestrator profile.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Settings.Model == "" {
		cfg.Settings = agent.DefaultSettings()
	}

	return &Classifier{
		provider: cfg.Provider,
		settings: cfg.Settings,
		profile:  agent.OrchestratorProfile(),
		logger:   cfg.Logger.With().Str("component", "classifier").Logger(),
	}, nil
}

// Classify produces an ExecutionPlan for the user request. It never fails:
// malformed or unparseable model output degrades to a DIRECT plan carrying
// the raw model text.
func (c *Classifier) Classify(ctx context.Context, userInput string) ExecutionPlan {
	request := agent.Request{
		Model: c.settings.Model,
		Messages: []agent.Message{
			{Role: "user", Content: fmt.Sprintf(classifierInstructions, userInput)},
		},
		Temperature:  c.settings.Temperature,
		MaxTokens:    c.settings.MaxTokens,
		SystemPrompt: c.profile.SystemPrompt,
	}

	response, err := c.provider.Complete(ctx, request)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Classifier model call failed, falling back to direct")
		return DirectPlan(fmt.Sprintf("Sorry, I could not plan this request: %v", err))
	}

	plan, err := ParsePlan(response.Text)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Malformed plan output, falling back to direct")
		return DirectPlan(response.Text)
	}

	c.logger.Info().
		Str("mode", string(plan.Mode)).
		Interface("steps", plan.Steps).
		Msg("Plan classified")

	return plan
}

// ParsePlan parses and validates raw classifier output. The caller decides
// what to do with a failure; Classify degrades it to a DIRECT plan.
func ParsePlan(raw string) (ExecutionPlan, error) {
	cleaned := stripCodeFence(raw)

	if err := validatePlanJSON(cleaned); err != nil {
		return ExecutionPlan{}, err
	}

	var plan ExecutionPlan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return ExecutionPlan{}, fmt.Errorf("failed to parse plan JSON: %w", err)
	}

	switch plan.Mode {
	case ModeDirect:
		return plan, nil
	case ModeDelegate:
		if len(plan.Steps) == 0 {
			return ExecutionPlan{}, fmt.Errorf("delegate plan has no steps")
		}
		// Duplicates are tolerated; unknown roles are not. The schema already
		// rejects unknowns, the whitelist check guards against schema drift.
		for _, role := range plan.Steps {
			if !IsDelegatable(role) {
				return ExecutionPlan{}, fmt.Errorf("invalid plan step: %s", role)
			}
		}
		return plan, nil
	default:
		return ExecutionPlan{}, fmt.Errorf("invalid plan mode: %s", plan.Mode)
	}
}

// stripCodeFence removes a surrounding markdown code fence, which models
// routinely wrap JSON in despite instructions.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
