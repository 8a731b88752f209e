// Package bugreport evaluates page assertions and turns their failures into
// validated bug reports.
//
// Assertions form a closed set of variants, each with its own evaluation
// function. The Builder fills unspecified report fields from triage and the
// failed assertions, then validates the result against an embedded CUE
// schema. The Asserter ties both to evidence capture and storage.
package bugreport

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/bugzapp/internal/triage"
)

// Page is the DOM inspection surface assertions evaluate against.
type Page interface {
	URL() string
	IsVisible(ctx context.Context, selector string) (bool, error)
	TextContent(ctx context.Context, selector string) (string, error)
	Count(ctx context.Context, selector string) (int, error)
}

// Outcome is the evaluated result of one assertion.
type Outcome struct {
	Type        triage.FailureType `json:"type"`
	Passed      bool               `json:"passed"`
	Expectation string             `json:"expectation"`
	Message     string             `json:"message"`
	Selector    string             `json:"selector,omitempty"`
}

// Assertion is one checkable expectation about a page.
type Assertion interface {
	Kind() triage.FailureType
	Evaluate(ctx context.Context, page Page) (Outcome, error)
}

// SelectorVisible expects an element matching Selector to be visible.
type SelectorVisible struct {
	Selector string `json:"selector"`
}

func (SelectorVisible) Kind() triage.FailureType { return triage.SelectorVisible }

func (a SelectorVisible) Evaluate(ctx context.Context, page Page) (Outcome, error) {
	visible, err := page.IsVisible(ctx, a.Selector)
	if err != nil {
		return Outcome{}, fmt.Errorf("check visibility of %s: %w", a.Selector, err)
	}
	out := Outcome{
		Type:        a.Kind(),
		Passed:      visible,
		Expectation: fmt.Sprintf("%s is visible", a.Selector),
		Selector:    a.Selector,
	}
	if visible {
		out.Message = fmt.Sprintf("%s is visible", a.Selector)
	} else {
		out.Message = fmt.Sprintf("%s is not visible", a.Selector)
	}
	return out, nil
}

// TextEquals expects the trimmed text of Selector to equal Expected.
type TextEquals struct {
	Selector string `json:"selector"`
	Expected string `json:"expected"`
}

func (TextEquals) Kind() triage.FailureType { return triage.TextEquals }

func (a TextEquals) Evaluate(ctx context.Context, page Page) (Outcome, error) {
	text, err := page.TextContent(ctx, a.Selector)
	if err != nil {
		return Outcome{}, fmt.Errorf("read text of %s: %w", a.Selector, err)
	}
	actual := strings.TrimSpace(text)
	return Outcome{
		Type:        a.Kind(),
		Passed:      actual == a.Expected,
		Expectation: fmt.Sprintf("%s text equals %q", a.Selector, a.Expected),
		Message:     fmt.Sprintf("%s text is %q", a.Selector, actual),
		Selector:    a.Selector,
	}, nil
}

// URLMatches expects the page URL to match the regular expression Pattern.
type URLMatches struct {
	Pattern string `json:"pattern"`
}

func (URLMatches) Kind() triage.FailureType { return triage.URLMatches }

func (a URLMatches) Evaluate(ctx context.Context, page Page) (Outcome, error) {
	re, err := regexp.Compile(a.Pattern)
	if err != nil {
		return Outcome{}, fmt.Errorf("compile url pattern: %w", err)
	}
	url := page.URL()
	return Outcome{
		Type:        a.Kind(),
		Passed:      re.MatchString(url),
		Expectation: fmt.Sprintf("URL matches %s", a.Pattern),
		Message:     fmt.Sprintf("URL is %s", url),
	}, nil
}

// ElementCount expects exactly Count elements to match Selector.
type ElementCount struct {
	Selector string `json:"selector"`
	Count    int    `json:"count"`
}

func (ElementCount) Kind() triage.FailureType { return triage.ElementCount }

func (a ElementCount) Evaluate(ctx context.Context, page Page) (Outcome, error) {
	n, err := page.Count(ctx, a.Selector)
	if err != nil {
		return Outcome{}, fmt.Errorf("count %s: %w", a.Selector, err)
	}
	return Outcome{
		Type:        a.Kind(),
		Passed:      n == a.Count,
		Expectation: fmt.Sprintf("%s matches %d elements", a.Selector, a.Count),
		Message:     fmt.Sprintf("%s matches %d elements", a.Selector, n),
		Selector:    a.Selector,
	}, nil
}

// DecodeAssertion decodes one {"type": ...} document into its variant.
func DecodeAssertion(data []byte) (Assertion, error) {
	var head struct {
		Type triage.FailureType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode assertion: %w", err)
	}

	var a Assertion
	var err error
	switch head.Type {
	case triage.SelectorVisible:
		var v SelectorVisible
		err = json.Unmarshal(data, &v)
		if err == nil && v.Selector == "" {
			err = fmt.Errorf("selector is required")
		}
		a = v
	case triage.TextEquals:
		var v TextEquals
		err = json.Unmarshal(data, &v)
		if err == nil && v.Selector == "" {
			err = fmt.Errorf("selector is required")
		}
		a = v
	case triage.URLMatches:
		var v URLMatches
		err = json.Unmarshal(data, &v)
		if err == nil && v.Pattern == "" {
			err = fmt.Errorf("pattern is required")
		}
		a = v
	case triage.ElementCount:
		var v ElementCount
		err = json.Unmarshal(data, &v)
		if err == nil && v.Selector == "" {
			err = fmt.Errorf("selector is required")
		}
		a = v
	case "":
		return nil, fmt.Errorf("decode assertion: type is required")
	default:
		return nil, fmt.Errorf("decode assertion: unknown type %q", head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s assertion: %w", head.Type, err)
	}
	return a, nil
}

// DecodeAssertions decodes a JSON array of assertions.
func DecodeAssertions(data []byte) ([]Assertion, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode assertions: %w", err)
	}
	out := make([]Assertion, 0, len(raw))
	for i, r := range raw {
		a, err := DecodeAssertion(r)
		if err != nil {
			return nil, fmt.Errorf("assertions[%d]: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Evaluate runs every assertion and returns all outcomes in order.
func Evaluate(ctx context.Context, page Page, assertions []Assertion) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(assertions))
	for _, a := range assertions {
		out, err := a.Evaluate(ctx, page)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// Failed returns the outcomes that did not pass.
func Failed(outcomes []Outcome) []Outcome {
	failed := []Outcome{}
	for _, o := range outcomes {
		if !o.Passed {
			failed = append(failed, o)
		}
	}
	return failed
}
