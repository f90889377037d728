package xcresult

import (
	"errors"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/xcrunner/packages/core/parser"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// ErrInvalidDocument is returned when xcresulttool output is not JSON
var ErrInvalidDocument = errors.New("failed to parse xcresult JSON")

// UnknownSuite names cases whose testable summary has no target name
const UnknownSuite = "Unknown"

// leaf is a test case plus the reference to its full summary, used to
// fetch failure details that the metadata node does not carry
type leaf struct {
	tc         results.TestCase
	summaryRef string
}

// ParseDocument extracts test cases from one xcresulttool JSON document
// without following references to other objects in the bundle
func ParseDocument(data []byte) ([]results.TestCase, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidDocument
	}
	leaves := walkSummaries(gjson.ParseBytes(data))
	cases := make([]results.TestCase, len(leaves))
	for i, l := range leaves {
		cases[i] = l.tc
	}
	return cases, nil
}

// walkSummaries visits testPlanRunSummaries → testableSummaries → tests
// depth-first in document order
func walkSummaries(doc gjson.Result) []leaf {
	var out []leaf
	for _, summary := range values(doc, "testPlanRunSummaries") {
		for _, testable := range values(summary, "testableSummaries") {
			suite, ok := str(testable, "targetName")
			if !ok {
				suite = UnknownSuite
			}
			for _, item := range values(testable, "tests") {
				out = walkItem(item, suite, out)
			}
		}
	}
	return out
}

func walkItem(item gjson.Result, suite string, out []leaf) []leaf {
	subtests := item.Get("subtests")
	if !subtests.Exists() {
		if l, ok := toLeaf(item, suite); ok {
			out = append(out, l)
		}
		return out
	}
	for _, sub := range values(item, "subtests") {
		out = walkItem(sub, suite, out)
	}
	return out
}

func toLeaf(item gjson.Result, suite string) (leaf, bool) {
	name, ok := str(item, "name")
	if !ok {
		return leaf{}, false
	}

	status, _ := str(item, "testStatus")
	tc := results.TestCase{
		Suite:  suite,
		Name:   name,
		Status: mapStatus(status),
	}
	if secs, ok := number(item, "duration"); ok {
		tc.DurationMS = results.Millis(parser.SecondsToMillis(secs))
	}
	if tc.Status == results.StatusFailed {
		applyFailure(&tc, item)
	}

	ref, _ := str(item, "summaryRef.id")
	return leaf{tc: tc, summaryRef: ref}, true
}

// applyFailure copies the first failure summary of node onto tc
func applyFailure(tc *results.TestCase, node gjson.Result) bool {
	failures := values(node, "failureSummaries")
	if len(failures) == 0 {
		return false
	}
	first := failures[0]
	msg, ok := str(first, "message")
	if !ok {
		return false
	}
	tc.FailureMessage = msg

	if file, ok := str(first, "fileName"); ok {
		loc := &results.Location{File: file}
		if line, ok := number(first, "lineNumber"); ok {
			loc.Line = int(line)
		}
		tc.Location = loc
	}
	return true
}

func mapStatus(s string) results.Status {
	switch s {
	case "Success":
		return results.StatusPassed
	case "Failure":
		return results.StatusFailed
	default:
		return results.StatusSkipped
	}
}

// values unwraps {"_values": [...]} at path, keeping only object elements
func values(node gjson.Result, path string) []gjson.Result {
	arr := node.Get(path + "._values")
	if !arr.IsArray() {
		return nil
	}
	var out []gjson.Result
	for _, v := range arr.Array() {
		if v.IsObject() {
			out = append(out, v)
		}
	}
	return out
}

// str unwraps {"_value": "..."} at path
func str(node gjson.Result, path string) (string, bool) {
	v := node.Get(path + "._value")
	if v.Type != gjson.String {
		return "", false
	}
	return v.Str, true
}

// number unwraps a numeric {"_value": ...}; xcresulttool encodes numbers as strings
func number(node gjson.Result, path string) (float64, bool) {
	v := node.Get(path + "._value")
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
