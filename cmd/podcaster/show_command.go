package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thinkscotty/podcaster/internal/database"
	"github.com/thinkscotty/podcaster/internal/models"
	"github.com/thinkscotty/podcaster/internal/pipeline"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var withScript bool

	cmd := &cobra.Command{
		Use:   "show [DATE]",
		Short: "Display the recorded run for a date (default today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			date := time.Now().Format(time.DateOnly)
			if len(args) == 1 {
				date = args[0]
			}

			db, err := database.New(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			raw, err := db.MustGet(cmd.Context(), pipeline.RecordKey(cfg.Pipeline.Environment, cfg.Pipeline.Name, date))
			if errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("no run recorded for %s in %s", date, cfg.Pipeline.Environment)
			}
			if err != nil {
				return err
			}
			bundle, err := pipeline.DecodeBundle(raw)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), renderBundle(bundle, withScript))
			return nil
		},
	}

	cmd.Flags().BoolVar(&withScript, "script", false, "Also print the podcast script")
	return cmd
}

func renderBundle(b *models.RunBundle, withScript bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", b.Title)
	fmt.Fprintf(&sb, "Run %s, completed %s\n\n", b.RunID, b.CompletedAt.Format(time.RFC3339))

	rows := make([][]string, len(b.Stories))
	for i, s := range b.Stories {
		title := s.Title
		if s.Fallback {
			title += " (fallback)"
		}
		rows[i] = []string{strconv.Itoa(i + 1), title, s.SourceName}
	}
	sb.WriteString(renderTable([]string{"#", "Story", "Source"}, rows, []columnAlignment{alignRight}))
	sb.WriteString("\n\n")

	audio := b.FinalAudioKey
	if audio == "" {
		audio = "none (text only)"
	}
	sb.WriteString(renderTable(
		[]string{"Artifact", "Value"},
		[][]string{
			{"Utterances", strconv.Itoa(b.Utterances)},
			{"Audio segments", strconv.Itoa(b.AudioSegments)},
			{"Final audio", audio},
			{"Script", fmt.Sprintf("%d chars", len(b.PodcastScript))},
			{"Blog post", fmt.Sprintf("%d chars", len(b.BlogPost))},
		},
		nil,
	))
	sb.WriteString("\n\n")
	sb.WriteString(b.IntroText)
	sb.WriteString("\n")

	if withScript {
		sb.WriteString("\n")
		sb.WriteString(b.PodcastScript)
		sb.WriteString("\n")
	}
	return sb.String()
}
