package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/promptkit/internal/template"
)

// UseCmd returns the use command.
func UseCmd(s *session) *Command {
	fs := flag.NewFlagSet("use", flag.ContinueOnError)
	fs.StringArray("set", nil, "Placeholder value as `name=value` (repeatable)")
	fs.Bool("no-input", false, "Do not ask for values; unfilled placeholders stay as they are")
	fs.Bool("no-remember", false, "Do not remember the values for next time")

	return &Command{
		Flags: fs,
		Usage: "use <id> [flags]",
		Short: "Fill placeholders and print the result",
		Long: `Fill the placeholders of a prompt and print the result.

Values are taken from --set, then from interactive answers, then from the
values remembered for this prompt, then from the placeholder's default.
{{today}} and {{now}} are always filled with the current date and time.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execUse(ctx, io, s, fs, args)
		},
	}
}

func execUse(ctx context.Context, o *IO, s *session, flags *flag.FlagSet, args []string) error {
	if len(args) == 0 {
		return errIDRequired
	}

	id := args[0]

	sets, _ := flags.GetStringArray("set")
	noInput, _ := flags.GetBool("no-input")
	noRemember, _ := flags.GetBool("no-remember")

	supplied, err := parseAssignments(sets)
	if err != nil {
		return err
	}

	a, err := s.App(ctx)
	if err != nil {
		return err
	}

	rec, suggestions, err := a.Suggestions(ctx, id)
	if err != nil {
		return err
	}

	if !noInput && o.In() != nil {
		err = askValues(o, template.Parse(rec.Content), suggestions, supplied)
		if err != nil {
			return err
		}
	}

	out, err := a.Render(ctx, id, supplied, !noRemember)
	if err != nil {
		return err
	}

	o.Println(strings.TrimRight(out.Text, "\n"))

	if len(out.Missing) > 0 {
		o.Warn("unfilled placeholders: "+strings.Join(out.Missing, ", "), "pass --set name=value for each")
	}

	return nil
}

// askValues prompts for every placeholder that is neither automatic nor
// already supplied and stores non-empty answers in supplied.
func askValues(o *IO, placeholders []template.Placeholder, suggestions, supplied map[string]string) error {
	var pending []template.Placeholder

	for _, p := range placeholders {
		if _, ok := supplied[p.Name]; !ok && !p.Auto() {
			pending = append(pending, p)
		}
	}

	if len(pending) == 0 {
		return nil
	}

	pr := newPrompter(o.In(), o.errOut)
	defer func() { _ = pr.Close() }()

	for _, p := range pending {
		suggestion, remembered := suggestions[p.Name]
		if !remembered && p.HasDefault {
			suggestion = p.Default
		}

		answer, err := pr.Ask(p.Name, suggestion)
		if err != nil {
			return err
		}

		// Untouched defaults are not remembered.
		if answer == "" || (!remembered && p.HasDefault && answer == p.Default) {
			continue
		}

		supplied[p.Name] = answer
	}

	return nil
}

func parseAssignments(sets []string) (map[string]string, error) {
	out := make(map[string]string, len(sets))

	for _, set := range sets {
		name, value, ok := strings.Cut(set, "=")
		name = strings.TrimSpace(name)

		if !ok || name == "" {
			return nil, fmt.Errorf("%w: --set %q", errInvalidAssignment, set)
		}

		out[name] = value
	}

	return out, nil
}
