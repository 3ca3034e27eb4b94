package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/briefing/pkg/agent"
)

const (
	GatherStageName = "data_gatherer"
	ReportStageName = "report_writer"
)

// PromptFunc builds the prompt of a stage from the request and the output of
// the previous stage, which is empty for the first one.
type PromptFunc func(req Request, input string) string

// Stage binds a named step to an agent and an input transform.
type Stage struct {
	Name         string
	Agent        agent.Agent
	Instructions string
	Prompt       PromptFunc
	// Timeout bounds one invocation. Zero means no deadline beyond the
	// caller's context.
	Timeout time.Duration
}

const (
	DefaultGatherInstructions = `You are a sports data analyst. Use the available tools to collect the facts needed to answer the request. Call independent tools in parallel. Reply with the collected data as structured notes; do not write the final report.`
	DefaultReportInstructions = `You are a sports journalist. Write a clear, well structured markdown report that answers the request using only the data provided. Compare the subjects aspect by aspect and end with a short verdict.`
)

// GatherStage returns the first stage with default instructions and prompt.
func GatherStage(a agent.Agent) Stage {
	return Stage{
		Name:         GatherStageName,
		Agent:        a,
		Instructions: DefaultGatherInstructions,
		Prompt:       GatherPrompt,
	}
}

// ReportStage returns the second stage with default instructions and prompt.
func ReportStage(a agent.Agent) Stage {
	return Stage{
		Name:         ReportStageName,
		Agent:        a,
		Instructions: DefaultReportInstructions,
		Prompt:       ReportPrompt,
	}
}

func GatherPrompt(req Request, _ string) string {
	return fmt.Sprintf("Gather data for: %s\nAspects to cover: %s", req.Topic(), strings.Join(req.Aspects(), ", "))
}

func ReportPrompt(req Request, gathered string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a report for: %s\nAspects to cover: %s\n\n", req.Topic(), strings.Join(req.Aspects(), ", "))
	sb.WriteString("--- Gathered Data ---\n")
	sb.WriteString(gathered)
	return sb.String()
}

func (s Stage) prompt(req Request, input string) string {
	if s.Prompt != nil {
		return s.Prompt(req, input)
	}
	return input
}

func (s Stage) validate() error {
	if s.Name == "" {
		return fmt.Errorf("stage has no name")
	}
	if s.Agent == nil {
		return fmt.Errorf("stage %s has no agent", s.Name)
	}
	return nil
}
