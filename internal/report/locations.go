package report

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// LocationKeys are object keys whose string values are always treated as
// evidence locations, whatever they look like.
var LocationKeys = []string{
	"path",
	"url",
	"href",
	"link",
	"uri",
	"artifactPath",
	"screenshotPath",
	"logPath",
	"tracePath",
}

// locationsProgram walks at most four levels of evidence data and emits
// every string that is either stored under a location key or looks like a
// URL or filesystem path.
const locationsProgram = `
def loc:
  startswith("http://") or startswith("https://") or startswith("file://")
  or startswith("/") or contains("\\");
def walk_locs($d):
  if $d > 3 or . == null then empty
  elif type == "string" then select(loc)
  elif type == "array" then .[] | walk_locs($d + 1)
  elif type == "object" then
    to_entries[]
    | ((select((.value | type) == "string" and (.key as $k | $keys | any(. == $k))) | .value),
       (.value | walk_locs($d + 1)))
  else empty
  end;
walk_locs(0)
`

var locationsCode = mustCompileLocations()

func mustCompileLocations() *gojq.Code {
	parsed, err := gojq.Parse(locationsProgram)
	if err != nil {
		panic(fmt.Sprintf("report: invalid locations program: %v", err))
	}
	code, err := gojq.Compile(parsed, gojq.WithVariables([]string{"$keys"}))
	if err != nil {
		panic(fmt.Sprintf("report: compile locations program: %v", err))
	}
	return code
}

// Locations extracts the file paths and URLs referenced by evidence data,
// deduplicated in first-seen order. The result is never nil.
func Locations(data any) ([]string, error) {
	input, err := normalizeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("normalize evidence data: %w", err)
	}

	keys := make([]any, len(LocationKeys))
	for i, k := range LocationKeys {
		keys[i] = k
	}

	seen := make(map[string]bool)
	locations := []string{}
	iter := locationsCode.Run(input, keys)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("evaluate locations: %w", err)
		}
		s, ok := v.(string)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		locations = append(locations, s)
	}
	return locations, nil
}

// normalizeJSON converts typed Go values into the plain maps and slices
// gojq operates on.
func normalizeJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
