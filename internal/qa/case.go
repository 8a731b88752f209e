package qa

// Tool names understood by the runner. Tool providers register
// implementations under these names.
const (
	ToolNavigate = "navigate"
	ToolObserve  = "observe"
	ToolAct      = "act"
	ToolExtract  = "extract"
	ToolAssert   = "assert"
)

// TestPriority ranks a test case for scheduling and reporting.
type TestPriority string

const (
	PriorityLow      TestPriority = "low"
	PriorityMedium   TestPriority = "medium"
	PriorityHigh     TestPriority = "high"
	PriorityCritical TestPriority = "critical"
)

// TestStep is one atomic browser-facing action or check.
type TestStep struct {
	ID          string         `json:"id" yaml:"id"`
	Description string         `json:"description" yaml:"description"`
	Tool        string         `json:"tool" yaml:"tool"`
	Input       map[string]any `json:"input" yaml:"input"`
}

// TestCase owns an ordered list of steps.
type TestCase struct {
	ID            string       `json:"id" yaml:"id"`
	Description   string       `json:"description" yaml:"description"`
	Preconditions []string     `json:"preconditions" yaml:"preconditions"`
	Steps         []TestStep   `json:"steps" yaml:"steps"`
	Assertions    []string     `json:"assertions" yaml:"assertions"`
	Tags          []string     `json:"tags" yaml:"tags"`
	Priority      TestPriority `json:"priority" yaml:"priority"`
}

// TestSuite groups test cases under an identifier for the suite registry.
type TestSuite struct {
	ID          string     `json:"id" yaml:"id"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	TestCases   []TestCase `json:"testCases" yaml:"test_cases"`
}
