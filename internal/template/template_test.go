package template_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/promptkit/internal/template"
)

var at = time.Date(2024, time.March, 9, 14, 5, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    []template.Placeholder
	}{
		{
			name:    "plain text",
			content: "nothing here",
			want:    []template.Placeholder{},
		},
		{
			name:    "name and default",
			content: "Hi {{ name }}, from {{sender|me}}",
			want: []template.Placeholder{
				{Name: "name"},
				{Name: "sender", Default: "me", HasDefault: true},
			},
		},
		{
			name:    "first occurrence wins",
			content: "{{x}} {{x|later}} {{y|}} {{y|second}}",
			want: []template.Placeholder{
				{Name: "x"},
				{Name: "y", Default: "", HasDefault: true},
			},
		},
		{
			name:    "blank names are not placeholders",
			content: "{{   }} {{ |x}} {{}}",
			want:    []template.Placeholder{},
		},
		{
			name:    "unterminated markup",
			content: "{{open {{x} {{y|z",
			want:    []template.Placeholder{},
		},
		{
			name:    "extra leading brace",
			content: "{{{x}}",
			want:    []template.Placeholder{{Name: "{x"}},
		},
		{
			name:    "default keeps spaces and pipes",
			content: "{{a| b|c }}",
			want:    []template.Placeholder{{Name: "a", Default: " b|c ", HasDefault: true}},
		},
		{
			name:    "auto names are listed",
			content: "{{today}} {{now}}",
			want:    []template.Placeholder{{Name: "today"}, {Name: "now"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if diff := cmp.Diff(tt.want, template.Parse(tt.content)); diff != "" {
				t.Errorf("Parse(%q) (-want +got):\n%s", tt.content, diff)
			}
		})
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		values  map[string]string
		want    template.Result
	}{
		{
			name:    "round trip with today",
			content: "Hi {{name}}, today is {{today}}",
			values:  map[string]string{"name": "Ada"},
			want:    template.Result{Text: "Hi Ada, today is 2024-03-09", Missing: []string{}},
		},
		{
			name:    "missing without default",
			content: "{{x}}",
			values:  map[string]string{},
			want:    template.Result{Text: "{{x}}", Missing: []string{"x"}},
		},
		{
			name:    "default fallback",
			content: "{{x|foo}}",
			values:  nil,
			want:    template.Result{Text: "foo", Missing: []string{}},
		},
		{
			name:    "empty default still counts",
			content: "[{{x|}}]",
			values:  nil,
			want:    template.Result{Text: "[]", Missing: []string{}},
		},
		{
			name:    "empty value falls back to default",
			content: "{{x|foo}}",
			values:  map[string]string{"x": ""},
			want:    template.Result{Text: "foo", Missing: []string{}},
		},
		{
			name:    "auto values override supplied",
			content: "{{now}} / {{ today |never}}",
			values:  map[string]string{"now": "yesterday", "today": "tomorrow"},
			want:    template.Result{Text: "2024-03-09 14:05 / 2024-03-09", Missing: []string{}},
		},
		{
			name:    "missing reported once and markup kept verbatim",
			content: "{{ x }} and {{x}} and {{x|d}}",
			values:  nil,
			want:    template.Result{Text: "{{ x }} and {{x}} and d", Missing: []string{"x"}},
		},
		{
			name:    "malformed markup passes through",
			content: "{{a}b}} {{ }} {{c|d} {{",
			values:  map[string]string{"a": "A", "c": "C"},
			want:    template.Result{Text: "{{a}b}} {{ }} {{c|d} {{", Missing: []string{}},
		},
		{
			name:    "values are not rescanned",
			content: "{{a}}",
			values:  map[string]string{"a": "{{b}}"},
			want:    template.Result{Text: "{{b}}", Missing: []string{}},
		},
		{
			name:    "unicode around markup",
			content: "¡{{saludo|hola}}, señor!",
			values:  nil,
			want:    template.Result{Text: "¡hola, señor!", Missing: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := template.Apply(tt.content, tt.values, at)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Apply(%q) (-want +got):\n%s", tt.content, diff)
			}
		})
	}
}

func TestIsAuto(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]bool{"today": true, "now": true, "Today": false, "name": false} {
		if got := template.IsAuto(name); got != want {
			t.Errorf("IsAuto(%q)=%v, want=%v", name, got, want)
		}
	}
}
