package chunking

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

var errEmptyPropositions = errors.New("chunking: agentic response contained no usable propositions")

// parsePropositions extracts a flat array of strings from the model's raw
// response, tolerating surrounding prose or a fenced code block by
// scanning for the first '[' ... last ']' span before handing off to gjson.
func parsePropositions(raw string) ([]string, error) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end < start {
		return nil, errEmptyPropositions
	}
	candidate := raw[start : end+1]

	result := gjson.Parse(candidate)
	if !result.IsArray() {
		return nil, errEmptyPropositions
	}

	var out []string
	for _, item := range result.Array() {
		if item.Type == gjson.String {
			out = append(out, item.String())
		}
	}
	if len(out) == 0 {
		return nil, errEmptyPropositions
	}
	return out, nil
}
