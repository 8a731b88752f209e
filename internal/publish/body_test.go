package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabels_Distinct(t *testing.T) {
	r := sampleReport()
	r.Component = "major"
	assert.Equal(t, []string{"major", "p1"}, Labels(r))

	r.Component = ""
	assert.Equal(t, []string{"major", "p1"}, Labels(r))
}

func TestMarkdownBody(t *testing.T) {
	want := "**Severity:** major\n" +
		"**Priority:** p1\n" +
		"**Component:** UI\n" +
		"**Reproducibility:** always\n" +
		"\n" +
		"## Steps to Reproduce\n" +
		"1. Open cart\n" +
		"2. Look for checkout\n" +
		"\n" +
		"## Expected\n" +
		"#checkout is visible\n" +
		"\n" +
		"## Actual\n" +
		"#checkout not found\n" +
		"\n" +
		"## URLs\n" +
		"- https://shop.test/cart\n" +
		"\n" +
		"## Evidence\n" +
		"- screenshot: /tmp/ev/screenshot.png"
	assert.Equal(t, want, MarkdownBody(sampleReport()))
}

func TestMarkdownBody_OmitsEmptySections(t *testing.T) {
	r := sampleReport()
	r.URLs = nil
	r.Evidence = nil

	body := MarkdownBody(r)
	assert.NotContains(t, body, "## URLs")
	assert.NotContains(t, body, "## Evidence")
}

func TestADFBody(t *testing.T) {
	doc := ADFBody(sampleReport())

	assert.Equal(t, "doc", doc.Type)
	assert.Equal(t, 1, doc.Version)
	require.NotEmpty(t, doc.Content)

	first := doc.Content[0]
	assert.Equal(t, "paragraph", first.Type)
	assert.Equal(t, []ADFNode{{Type: "text", Text: "**Severity:** major"}}, first.Content)

	blank := doc.Content[4]
	assert.Equal(t, "paragraph", blank.Type)
	assert.Empty(t, blank.Content)
}
