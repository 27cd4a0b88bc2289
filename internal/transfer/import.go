package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/promptkit/internal/prompt"
)

var (
	// ErrInvalidJSON is returned when an import is not JSON at all.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrNoPrompts is returned when valid JSON carries no prompt list.
	ErrNoPrompts = errors.New("no prompts array found")
)

// MaxReportedErrors caps [Result.Errors]; the rest is summarized.
const MaxReportedErrors = 10

// Result is the validated content of an import file.
type Result struct {
	Total  int            `json:"total"`
	Valid  int            `json:"valid"`
	Items  []prompt.Draft `json:"-"`
	Errors []string       `json:"errors"`
}

// Parse reads an import file: either a bare list of prompt objects or an
// object with a "prompts" list. Each item needs a string title; other
// fields default when absent or malformed. Items failing validation are
// reported as "Item N: ..." with N counting from 1 in the file.
func Parse(data []byte) (Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any

	err := dec.Decode(&doc)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	if dec.More() {
		return Result{}, fmt.Errorf("%w: trailing data after document", ErrInvalidJSON)
	}

	list, ok := promptList(doc)
	if !ok {
		return Result{}, ErrNoPrompts
	}

	res := Result{Total: len(list), Items: []prompt.Draft{}}

	var problems []string

	for i, item := range list {
		d, err := draftFrom(item)
		if err == nil {
			if p := prompt.Validate(d); len(p) > 0 {
				err = errors.New(strings.Join(p, "; "))
			}
		}

		if err != nil {
			problems = append(problems, fmt.Sprintf("Item %d: %v", i+1, err))

			continue
		}

		res.Items = append(res.Items, d)
	}

	res.Valid = len(res.Items)
	res.Errors = capErrors(problems)

	return res, nil
}

func promptList(doc any) ([]any, bool) {
	switch v := doc.(type) {
	case []any:
		return v, true
	case map[string]any:
		list, ok := v["prompts"].([]any)

		return list, ok
	default:
		return nil, false
	}
}

func draftFrom(item any) (prompt.Draft, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return prompt.Draft{}, errors.New("not an object")
	}

	title, ok := obj["title"].(string)
	if !ok {
		return prompt.Draft{}, errors.New("title must be a string")
	}

	d := prompt.Draft{Title: title, Tags: []string{}}

	if content, ok := obj["content"].(string); ok {
		d.Content = content
	}

	if tags, ok := obj["tags"].([]any); ok {
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				d.Tags = append(d.Tags, s)
			}
		}
	}

	if n, ok := obj["createdAt"].(json.Number); ok {
		if ms, err := n.Int64(); err == nil && ms > 0 {
			d.CreatedAt = ms
		} else if f, err := n.Float64(); err == nil && f > 0 {
			d.CreatedAt = int64(f)
		}
	}

	return d, nil
}

func capErrors(problems []string) []string {
	if len(problems) <= MaxReportedErrors {
		if problems == nil {
			return []string{}
		}

		return problems
	}

	out := append([]string{}, problems[:MaxReportedErrors]...)

	return append(out, fmt.Sprintf("...and %d more", len(problems)-MaxReportedErrors))
}
