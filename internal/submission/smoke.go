package submission

import (
	"fmt"

	"github.com/roach88/bugzapp/internal/qa"
)

// Smoke step instructions handed to the observe and extract tools.
const (
	ObserveInstruction = "Identify the primary navigation links and calls to action on the page."
	ExtractInstruction = "Extract the main heading and a one-sentence summary of the page."
)

// SmokeTags label every synthesized smoke case.
var SmokeTags = []string{"submission", "smoke"}

// BuildSmokeCases synthesizes one smoke case per target: navigate to it,
// observe its navigation and calls to action, extract heading and summary.
func BuildSmokeCases(targets []string) []qa.TestCase {
	cases := make([]qa.TestCase, 0, len(targets))
	for i, target := range targets {
		cases = append(cases, qa.TestCase{
			ID:            fmt.Sprintf("submission-smoke-%d", i+1),
			Description:   "Smoke test " + target,
			Preconditions: []string{},
			Steps: []qa.TestStep{
				{
					ID:          "navigate",
					Description: "Open " + target,
					Tool:        qa.ToolNavigate,
					Input:       map[string]any{"url": target},
				},
				{
					ID:          "observe-navigation",
					Description: "Observe primary navigation and calls to action",
					Tool:        qa.ToolObserve,
					Input:       map[string]any{"url": target, "instruction": ObserveInstruction},
				},
				{
					ID:          "extract-summary",
					Description: "Extract page heading and summary",
					Tool:        qa.ToolExtract,
					Input:       map[string]any{"url": target, "instruction": ExtractInstruction},
				},
			},
			Assertions: []string{
				"Page loads without error",
				"Primary navigation is present",
				"Page has a heading",
			},
			Tags:     append([]string(nil), SmokeTags...),
			Priority: qa.PriorityHigh,
		})
	}
	return cases
}
