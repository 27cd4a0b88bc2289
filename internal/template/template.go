// Package template fills placeholders in prompt content.
//
// The grammar:
//
//	{{name}}
//	{{name|default}}
//
// A name is any run of characters other than '}' and '|', trimmed of
// surrounding whitespace; a name that is blank after trimming is not a
// placeholder. A default is any run of characters other than '}' and may be
// empty, which still counts as a declared default. Anything that does not
// match, including unterminated markup, is plain text.
//
// The names "today" and "now" are auto-values: they are always replaced by
// the current date or date and time, whatever the caller supplies.
package template

import (
	"strings"
	"time"
)

// Auto-value names and their layouts.
const (
	AutoToday = "today"
	AutoNow   = "now"

	TodayLayout = "2006-01-02"
	NowLayout   = "2006-01-02 15:04"
)

// Placeholder is a distinct name found in content.
type Placeholder struct {
	Name       string `json:"name"`
	Default    string `json:"default,omitempty"`
	HasDefault bool   `json:"hasDefault"`
}

// Auto reports whether p is filled automatically.
func (p Placeholder) Auto() bool {
	return IsAuto(p.Name)
}

// Result is the outcome of [Apply].
type Result struct {
	Text    string   `json:"text"`
	Missing []string `json:"missing"`
}

// IsAuto reports whether name is an auto-value.
func IsAuto(name string) bool {
	return name == AutoToday || name == AutoNow
}

// AutoValues returns the auto-values for now.
func AutoValues(now time.Time) map[string]string {
	return map[string]string{
		AutoToday: now.Format(TodayLayout),
		AutoNow:   now.Format(NowLayout),
	}
}

// Parse returns the distinct placeholders in content in order of first
// appearance. The first occurrence of a name decides its default.
func Parse(content string) []Placeholder {
	out := []Placeholder{}
	seen := make(map[string]bool)

	for _, m := range scan(content) {
		if seen[m.name] {
			continue
		}

		seen[m.name] = true
		out = append(out, Placeholder{Name: m.name, Default: m.def, HasDefault: m.hasDef})
	}

	return out
}

// Apply substitutes every placeholder occurrence in content, left to right.
//
// Auto-values always win. Otherwise a non-empty entry in values is used,
// then the occurrence's own default. An occurrence with neither keeps its
// original markup and its name is reported once in Missing.
func Apply(content string, values map[string]string, now time.Time) Result {
	auto := AutoValues(now)
	missing := []string{}
	reported := make(map[string]bool)

	var b strings.Builder

	b.Grow(len(content))

	last := 0

	for _, m := range scan(content) {
		b.WriteString(content[last:m.start])
		last = m.end

		if v, ok := auto[m.name]; ok {
			b.WriteString(v)

			continue
		}

		if v := values[m.name]; v != "" {
			b.WriteString(v)

			continue
		}

		if m.hasDef {
			b.WriteString(m.def)

			continue
		}

		b.WriteString(content[m.start:m.end])

		if !reported[m.name] {
			reported[m.name] = true
			missing = append(missing, m.name)
		}
	}

	b.WriteString(content[last:])

	return Result{Text: b.String(), Missing: missing}
}

// match is one placeholder occurrence spanning content[start:end].
type match struct {
	start, end int
	name       string
	def        string
	hasDef     bool
}

// scan finds all placeholder occurrences. At each "{{" it reads a name up
// to '|' or '}', an optional default up to '}', and requires "}}". On
// failure it moves on by a single byte, so "{{{x}}" yields the name "{x".
func scan(s string) []match {
	var out []match

	for i := 0; i+1 < len(s); {
		if s[i] != '{' || s[i+1] != '{' {
			i++

			continue
		}

		m, ok := matchAt(s, i)
		if !ok {
			i++

			continue
		}

		out = append(out, m)
		i = m.end
	}

	return out
}

func matchAt(s string, start int) (match, bool) {
	pos := start + 2

	nameEnd := pos
	for nameEnd < len(s) && s[nameEnd] != '}' && s[nameEnd] != '|' {
		nameEnd++
	}

	if nameEnd == pos || nameEnd == len(s) {
		return match{}, false
	}

	m := match{start: start, name: strings.TrimSpace(s[pos:nameEnd])}
	pos = nameEnd

	if s[pos] == '|' {
		defStart := pos + 1

		defEnd := defStart
		for defEnd < len(s) && s[defEnd] != '}' {
			defEnd++
		}

		m.def = s[defStart:defEnd]
		m.hasDef = true
		pos = defEnd
	}

	if pos+1 >= len(s) || s[pos] != '}' || s[pos+1] != '}' {
		return match{}, false
	}

	if m.name == "" {
		return match{}, false
	}

	m.end = pos + 2

	return m, true
}
