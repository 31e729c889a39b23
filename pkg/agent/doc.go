// Package agent drives bounded LLM conversation loops against a tool bridge.
//
// Invariants:
// - Each Loop owns a private conversation history; it is never shared.
// - A single invocation performs at most MaxRounds model/tool round trips.
// - Tool failures become tool-result messages, never loop aborts.
//
// Usage:
//
//	loop, err := agent.NewLoop(agent.LoopConfig{
//		Provider: provider,
//		Bridge:   bridge,
//		Profile:  agent.AnalystProfile(),
//	})
//	if err != nil {
//		return err
//	}
//	reply, err := loop.Run(ctx, "list this week's commits")
package agent
