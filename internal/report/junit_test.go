package report

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bugzapp/internal/qa"
)

type parsedSuite struct {
	Name      string       `xml:"name,attr"`
	Tests     int          `xml:"tests,attr"`
	Failures  int          `xml:"failures,attr"`
	Skipped   int          `xml:"skipped,attr"`
	Errors    int          `xml:"errors,attr"`
	Time      string       `xml:"time,attr"`
	Cases     []parsedCase `xml:"testcase"`
	SystemOut string       `xml:"system-out"`
}

type parsedCase struct {
	ClassName string `xml:"classname,attr"`
	Name      string `xml:"name,attr"`
	Time      string `xml:"time,attr"`
	Failure   *struct {
		Message string `xml:"message,attr"`
		Body    string `xml:",chardata"`
	} `xml:"failure"`
	Skipped *struct {
		Message string `xml:"message,attr"`
	} `xml:"skipped"`
	SystemOut string `xml:"system-out"`
}

func parseJUnit(t *testing.T, doc string) parsedSuite {
	t.Helper()
	var suite parsedSuite
	require.NoError(t, xml.Unmarshal([]byte(doc), &suite))
	return suite
}

func TestRenderJUnit_Counts(t *testing.T) {
	doc, err := RenderJUnit(shopSummary(), shopMeta())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(doc, xml.Header))

	suite := parseJUnit(t, doc)
	assert.Equal(t, "shop-smoke", suite.Name)
	assert.Equal(t, 2, suite.Tests)
	assert.Equal(t, 1, suite.Failures)
	assert.Equal(t, 1, suite.Skipped)
	assert.Equal(t, 0, suite.Errors)
	assert.Equal(t, "2.500", suite.Time)
	require.Len(t, suite.Cases, 2)

	checkout := suite.Cases[0]
	assert.Equal(t, "shop-smoke", checkout.ClassName)
	assert.Equal(t, "checkout", checkout.Name)
	assert.Equal(t, "1.200", checkout.Time)
	require.NotNil(t, checkout.Failure)
	assert.Equal(t, "Step assert-button failed: Assertion failed. Bug report captured.", checkout.Failure.Message)
	assert.Equal(t, checkout.Failure.Message, checkout.Failure.Body)
	assert.Nil(t, checkout.Skipped)

	search := suite.Cases[1]
	assert.Nil(t, search.Failure)
	require.NotNil(t, search.Skipped)
	assert.Equal(t, "Step query blocked: Unsupported tool: act", search.Skipped.Message)
	assert.Equal(t, "0.000", search.Time)
}

func TestRenderJUnit_CaseSystemOut(t *testing.T) {
	doc, err := RenderJUnit(shopSummary(), shopMeta())
	require.NoError(t, err)
	suite := parseJUnit(t, doc)

	var out struct {
		Status    string   `json:"status"`
		StartedAt string   `json:"startedAt"`
		EndedAt   string   `json:"endedAt"`
		Evidence  []string `json:"evidence"`
		Failures  []string `json:"failures"`
		Blocked   []string `json:"blocked"`
	}
	require.NoError(t, json.Unmarshal([]byte(suite.Cases[0].SystemOut), &out))
	assert.Equal(t, "fail", out.Status)
	assert.Equal(t, "2025-01-15T09:30:00.000Z", out.StartedAt)
	assert.Equal(t, "2025-01-15T09:30:01.200Z", out.EndedAt)
	assert.Equal(t, []string{"Evidence step:open (step open): https://shop.test/cart"}, out.Evidence)
	assert.Equal(t, []string{"Step assert-button failed: Assertion failed. Bug report captured."}, out.Failures)
	assert.Equal(t, []string{"Step pay blocked: Blocked because step assert-button did not pass."}, out.Blocked)
}

func TestRenderJUnit_SuiteSystemOut(t *testing.T) {
	doc, err := RenderJUnit(shopSummary(), shopMeta())
	require.NoError(t, err)
	suite := parseJUnit(t, doc)

	var out struct {
		Evidence []struct {
			Ref       string   `json:"ref"`
			StepID    string   `json:"stepId"`
			Locations []string `json:"locations"`
		} `json:"evidence"`
		BugReports []qa.BugReport `json:"bugReports"`
	}
	require.NoError(t, json.Unmarshal([]byte(suite.SystemOut), &out))
	require.Len(t, out.Evidence, 1)
	assert.Equal(t, "step:open", out.Evidence[0].Ref)
	assert.Equal(t, []string{"https://shop.test/cart"}, out.Evidence[0].Locations)
	require.Len(t, out.BugReports, 1)
	assert.Equal(t, "Checkout button missing", out.BugReports[0].Title)
}

func TestRenderJUnit_NoSuiteSystemOutWithoutEvidence(t *testing.T) {
	summary := shopSummary()
	summary.Evidence = nil

	doc, err := RenderJUnit(summary, SuiteMeta{})
	require.NoError(t, err)
	suite := parseJUnit(t, doc)

	assert.Equal(t, DefaultSuiteName, suite.Name)
	assert.Equal(t, DefaultSuiteName, suite.Cases[0].ClassName)
	assert.Empty(t, suite.SystemOut)
	assert.NotEmpty(t, suite.Cases[0].SystemOut)
}

func TestRenderJUnit_NamePreferredOverID(t *testing.T) {
	doc, err := RenderJUnit(shopSummary(), SuiteMeta{ID: "shop-smoke", Name: "Shop Smoke"})
	require.NoError(t, err)
	suite := parseJUnit(t, doc)

	assert.Equal(t, "Shop Smoke", suite.Name)
	assert.Equal(t, "shop-smoke", suite.Cases[0].ClassName)
}

func TestRenderJUnit_EscapesMarkup(t *testing.T) {
	summary := shopSummary()
	summary.TestCaseResults[0].Steps[1].Error = `expected <button id="pay"> & found ]]> nothing`

	doc, err := RenderJUnit(summary, SuiteMeta{Name: `"quoted" & <odd>`})
	require.NoError(t, err)
	suite := parseJUnit(t, doc)

	assert.Equal(t, `"quoted" & <odd>`, suite.Name)
	assert.Equal(t, `Step assert-button failed: expected <button id="pay"> & found ]]> nothing`, suite.Cases[0].Failure.Message)
	assert.Equal(t, suite.Cases[0].Failure.Message, suite.Cases[0].Failure.Body)
}
