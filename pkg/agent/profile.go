package agent

// ToolAccess is an agent's tool-access policy.
type ToolAccess string

const (
	// ToolAccessNone hides the tool catalog from the agent.
	ToolAccessNone ToolAccess = "none"
	// ToolAccessFull exposes the entire catalog.
	ToolAccessFull ToolAccess = "full"
)

// Profile binds a role to a system prompt and a tool-access policy.
// All agents share one underlying model and differ only by profile.
type Profile struct {
	Role         string     `json:"role"`
	SystemPrompt string     `json:"system_prompt"`
	ToolAccess   ToolAccess `json:"tool_access"`
}

const orchestratorPrompt = `You are the orchestrator of a multi-agent system.
You analyze user requests, delegate work to specialist agents, and synthesize
their results into a final answer.

Available specialists:
- analyst: data collection expert. Uses tools to gather commits, activity and
  other raw data.
- writer: document expert. Turns collected data into reports, summaries and
  resume entries.
- reviewer: quality expert. Evaluates written output and suggests improvements.`

const analystPrompt = `You are a data analysis expert.
Use the available tools to collect the data the user asked for.

Rules:
- Return collected data in a structured form.
- Return analysis only; do not write reports.
- Include concrete figures and facts wherever possible.`

const writerPrompt = `You are a document writing expert.
Write clear, structured documents based on the data you are given.

Rules:
- Match the requested format: report, summary, resume entry, and so on.
- Do not collect data yourself; use only what is provided.
- Write in a readable, professional tone.`

const reviewerPrompt = `You are a document review expert.
Evaluate the quality of the document you are given and suggest improvements.

Review in exactly this format:
1. Overall verdict (pass / needs revision)
2. Strengths (1-3 items)
3. Improvements (1-3 items)
4. Revised final version incorporating the improvements`

// OrchestratorProfile returns the orchestrator profile. The orchestrator
// plans and synthesizes; it never appears as a delegation target.
func OrchestratorProfile() Profile {
	return Profile{
		Role:         "orchestrator",
		SystemPrompt: orchestratorPrompt,
		ToolAccess:   ToolAccessNone,
	}
}

// AnalystProfile returns the analyst profile. The analyst is the only
// specialist with tool access.
func AnalystProfile() Profile {
	return Profile{
		Role:         "analyst",
		SystemPrompt: analystPrompt,
		ToolAccess:   ToolAccessFull,
	}
}

// WriterProfile returns the writer profile.
func WriterProfile() Profile {
	return Profile{
		Role:         "writer",
		SystemPrompt: writerPrompt,
		ToolAccess:   ToolAccessNone,
	}
}

// ReviewerProfile returns the reviewer profile.
func ReviewerProfile() Profile {
	return Profile{
		Role:         "reviewer",
		SystemPrompt: reviewerPrompt,
		ToolAccess:   ToolAccessNone,
	}
}

// SingleProfile returns the profile used in single-agent mode: a general
// assistant with full tool access.
func SingleProfile() Profile {
	return Profile{
		Role:         "assistant",
		SystemPrompt: "You are a helpful assistant. Use the available tools when they help answer the question.",
		ToolAccess:   ToolAccessFull,
	}
}
