package planner

// PlanMode selects between answering directly and delegating to specialists.
type PlanMode string

const (
	ModeDirect   PlanMode = "direct"
	ModeDelegate PlanMode = "delegate"
)

// Role names a specialist agent. The orchestrator is never a valid step.
type Role string

const (
	RoleOrchestrator Role = "orchestrator"
	RoleAnalyst      Role = "analyst"
	RoleWriter       Role = "writer"
	RoleReviewer     Role = "reviewer"
)

// DelegatableRoles lists the roles a plan may delegate to, in canonical order.
func DelegatableRoles() []Role {
	return []Role{RoleAnalyst, RoleWriter, RoleReviewer}
}

// IsDelegatable reports whether a role may appear in plan steps.
func IsDelegatable(role Role) bool {
	switch role {
	case RoleAnalyst, RoleWriter, RoleReviewer:
		return true
	default:
		return false
	}
}

// ExecutionPlan is the classifier's decision for one user turn.
// Produced fresh per turn, never persisted.
type ExecutionPlan struct {
	Mode         PlanMode `json:"mode"`
	DirectAnswer string   `json:"direct_answer,omitempty"`
	Steps        []Role   `json:"steps,omitempty"`
}

// DirectPlan builds a DIRECT plan carrying the given answer text.
func DirectPlan(answer string) ExecutionPlan {
	return ExecutionPlan{
		Mode:         ModeDirect,
		DirectAnswer: answer,
	}
}
