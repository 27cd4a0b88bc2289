package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Limits enforced by [Validate] and [ValidatePatch].
const (
	MaxTitleLen   = 200
	MaxContentLen = 50_000
	MaxTags       = 20
	MaxTagLen     = 50
)

// Draft is the input for creating a record.
// CreatedAt is only honored by [Engine.BatchMerge]; zero means now.
type Draft struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"createdAt,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil
}

// Validate returns every problem with d. An empty result means d is valid.
func Validate(d Draft) []string {
	var problems []string

	problems = append(problems, checkTitle(d.Title)...)
	problems = append(problems, checkContent(d.Content)...)
	problems = append(problems, checkTags(d.Tags)...)

	return problems
}

// ValidatePatch checks only the fields p supplies.
func ValidatePatch(p Patch) []string {
	var problems []string

	if p.Title != nil {
		problems = append(problems, checkTitle(*p.Title)...)
	}

	if p.Content != nil {
		problems = append(problems, checkContent(*p.Content)...)
	}

	if p.Tags != nil {
		problems = append(problems, checkTags(*p.Tags)...)
	}

	return problems
}

func checkTitle(title string) []string {
	title = strings.TrimSpace(title)

	switch {
	case title == "":
		return []string{"title is required"}
	case utf8.RuneCountInString(title) > MaxTitleLen:
		return []string{fmt.Sprintf("title must be at most %d characters", MaxTitleLen)}
	}

	return nil
}

func checkContent(content string) []string {
	if utf8.RuneCountInString(content) > MaxContentLen {
		return []string{fmt.Sprintf("content must be at most %d characters", MaxContentLen)}
	}

	return nil
}

func checkTags(tags []string) []string {
	var problems []string

	tags = NormalizeTags(tags)
	if len(tags) > MaxTags {
		problems = append(problems, fmt.Sprintf("at most %d tags allowed (got %d)", MaxTags, len(tags)))
	}

	for _, tag := range tags {
		if utf8.RuneCountInString(tag) > MaxTagLen {
			problems = append(problems, fmt.Sprintf("tag %q must be at most %d characters", tag, MaxTagLen))
		}
	}

	return problems
}

// NormalizeTags trims and lowercases tags, drops empty ones and removes
// duplicates keeping the first occurrence. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))

	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}

		seen[tag] = true
		out = append(out, tag)
	}

	return out
}
