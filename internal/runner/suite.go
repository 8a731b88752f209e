package runner

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bugzapp/internal/qa"
)

// SuiteRegistry holds named test suites.
//
// Thread-safety: All methods are safe for concurrent use.
type SuiteRegistry struct {
	mu     sync.RWMutex
	suites map[string]qa.TestSuite
}

// NewSuiteRegistry creates a registry holding the given suites.
func NewSuiteRegistry(suites ...qa.TestSuite) *SuiteRegistry {
	r := &SuiteRegistry{suites: make(map[string]qa.TestSuite)}
	for _, s := range suites {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a suite.
func (r *SuiteRegistry) Register(suite qa.TestSuite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suites[suite.ID] = suite
}

// Get returns the suite with the given id.
func (r *SuiteRegistry) Get(id string) (qa.TestSuite, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.suites[id]
	return s, ok
}

// IDs returns the registered suite ids in sorted order.
func (r *SuiteRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.suites))
	for id := range r.suites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadSuiteFile reads and parses a suite YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadSuiteFile(path string) (qa.TestSuite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return qa.TestSuite{}, fmt.Errorf("failed to read suite file: %w", err)
	}
	return ParseSuite(data)
}

// ParseSuite decodes a suite document with strict field checking.
func ParseSuite(data []byte) (qa.TestSuite, error) {
	var suite qa.TestSuite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return qa.TestSuite{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateSuite(&suite); err != nil {
		return qa.TestSuite{}, fmt.Errorf("invalid suite: %w", err)
	}
	return suite, nil
}

// validateSuite checks required fields and id uniqueness within each case.
func validateSuite(s *qa.TestSuite) error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(s.TestCases) == 0 {
		return fmt.Errorf("test_cases list is required and must be non-empty")
	}

	caseIDs := make(map[string]bool)
	for i, tc := range s.TestCases {
		if tc.ID == "" {
			return fmt.Errorf("test_cases[%d]: id is required", i)
		}
		if caseIDs[tc.ID] {
			return fmt.Errorf("test_cases[%d]: duplicate id %q", i, tc.ID)
		}
		caseIDs[tc.ID] = true

		stepIDs := make(map[string]bool)
		for j, step := range tc.Steps {
			if step.ID == "" {
				return fmt.Errorf("test_cases[%d].steps[%d]: id is required", i, j)
			}
			if stepIDs[step.ID] {
				return fmt.Errorf("test_cases[%d].steps[%d]: duplicate id %q", i, j, step.ID)
			}
			stepIDs[step.ID] = true
			if step.Tool == "" {
				return fmt.Errorf("test_cases[%d].steps[%d]: tool is required", i, j)
			}
		}
	}
	return nil
}
