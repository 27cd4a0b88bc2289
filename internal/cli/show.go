package cli

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/promptkit/internal/store"
	"github.com/calvinalkan/promptkit/internal/template"
)

const timeLayout = "2006-01-02 15:04"

// ShowCmd returns the show command.
func ShowCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("show", flag.ContinueOnError),
		Usage: "show <id>",
		Short: "Show prompt details",
		Long:  "Display a prompt with its metadata and placeholders.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execShow(ctx, io, s, args)
		},
	}
}

func execShow(ctx context.Context, o *IO, s *session, args []string) error {
	if len(args) == 0 {
		return errIDRequired
	}

	a, err := s.App(ctx)
	if err != nil {
		return err
	}

	rec, err := a.Engine.Get(ctx, args[0])
	if err != nil {
		return err
	}

	o.Println("id:", rec.ID)
	o.Println("title:", rec.Title)

	if len(rec.Tags) > 0 {
		o.Println("tags:", strings.Join(rec.Tags, ", "))
	}

	o.Println("created:", rec.Created().Local().Format(timeLayout))
	o.Println("updated:", rec.Updated().Local().Format(timeLayout))

	if ph := template.Parse(rec.Content); len(ph) > 0 {
		o.Println("placeholders:", formatPlaceholders(ph))
	}

	o.Println()
	o.Println(strings.TrimRight(rec.Content, "\n"))

	return nil
}

func formatPlaceholders(ph []template.Placeholder) string {
	parts := make([]string, 0, len(ph))

	for _, p := range ph {
		switch {
		case p.Auto():
			parts = append(parts, p.Name+" (auto)")
		case p.HasDefault:
			parts = append(parts, p.Name+"|"+p.Default)
		default:
			parts = append(parts, p.Name)
		}
	}

	return strings.Join(parts, ", ")
}

func formatRecordLine(rec store.Record) string {
	line := rec.ID + "  " + rec.Title
	if len(rec.Tags) > 0 {
		line += "  [" + strings.Join(rec.Tags, ", ") + "]"
	}

	return line
}
