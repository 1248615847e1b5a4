package agent

import (
	"strings"

	"github.com/cortexai/opsagent/internal/tools"
)

// formatInstructions is the fixed ReAct scaffold. %TOOL_NAMES% is replaced
// with the registry's names so the model knows the closed set of actions.
const formatInstructions = `Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [%TOOL_NAMES%]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question`

// FormatPrompt renders the full model input for one iteration. It is pure:
// the same arguments always yield the same string.
func FormatPrompt(preamble string, reg *tools.Registry, tr Transcript, input string, history []Turn) string {
	var sb strings.Builder

	sb.WriteString(strings.TrimSpace(preamble))
	sb.WriteString("\n\nYou have access to the following tools:\n\n")
	for _, t := range reg.Tools() {
		sb.WriteString(t.Name)
		sb.WriteString(": ")
		sb.WriteString(t.Description)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(strings.Replace(formatInstructions, "%TOOL_NAMES%", strings.Join(reg.Names(), ", "), 1))
	sb.WriteString("\n")

	if len(history) > 0 {
		sb.WriteString("\nPrevious conversation:\n")
		for _, turn := range history {
			sb.WriteString("Human: ")
			sb.WriteString(turn.Input)
			sb.WriteString("\nAI: ")
			sb.WriteString(turn.Output)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nBegin!\n\nQuestion: ")
	sb.WriteString(input)
	sb.WriteString("\n")
	writeTranscript(&sb, tr)
	sb.WriteString("Thought:")

	return sb.String()
}

func writeTranscript(sb *strings.Builder, tr Transcript) {
	for _, s := range tr {
		switch s.Kind {
		case StepThought:
			sb.WriteString("Thought: " + s.Text + "\n")
		case StepAction:
			sb.WriteString("Action: " + s.Tool + "\n")
			sb.WriteString("Action Input: " + s.Input + "\n")
		case StepObservation:
			sb.WriteString("Observation: " + s.Text + "\n")
		case StepFinalAnswer:
			sb.WriteString("Final Answer: " + s.Text + "\n")
		}
	}
}
