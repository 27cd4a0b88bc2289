package testutil

import "strings"

// FuzzInput turns raw fuzz bytes into deterministic choices.
// Once the bytes run out every choice is the zero choice.
type FuzzInput struct {
	data []byte
	pos  int
}

// NewFuzzInput wraps data.
func NewFuzzInput(data []byte) *FuzzInput {
	return &FuzzInput{data: data}
}

// HasMore reports whether unread bytes remain.
func (in *FuzzInput) HasMore() bool {
	return in.pos < len(in.data)
}

func (in *FuzzInput) next() byte {
	if in.pos >= len(in.data) {
		return 0
	}

	b := in.data[in.pos]
	in.pos++

	return b
}

// Intn returns a value in [0, n). It returns 0 when n <= 0.
func (in *FuzzInput) Intn(n int) int {
	if n <= 0 {
		return 0
	}

	return int(in.next()) % n
}

// Pick returns one of choices.
func (in *FuzzInput) Pick(choices []string) string {
	if len(choices) == 0 {
		return ""
	}

	return choices[in.Intn(len(choices))]
}

// Concat picks from fragments until the input is used up and joins the
// picks. Prompt content for fuzz tests is built this way.
func (in *FuzzInput) Concat(fragments []string) string {
	var b strings.Builder

	for in.HasMore() {
		b.WriteString(in.Pick(fragments))
	}

	return b.String()
}
