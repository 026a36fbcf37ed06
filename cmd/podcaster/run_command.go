package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thinkscotty/podcaster/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var date string
	var scriptPath string
	var fresh bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and wait for it to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var opts pipeline.RunOptions
			if scriptPath != "" {
				data, err := os.ReadFile(scriptPath)
				if err != nil {
					return fmt.Errorf("read script: %w", err)
				}
				opts.CustomScript = string(data)
			}

			a, err := newApp(cfg, ctx.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			bundle, err := a.scheduler.RunNow(cmd.Context(), date, fresh, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recorded %s\n", pipeline.RecordKey(cfg.Pipeline.Environment, cfg.Pipeline.Name, bundle.Date))
			if bundle.FinalAudioKey != "" {
				fmt.Fprintf(out, "Audio    %s\n", a.blobs.URL(bundle.FinalAudioKey))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Run date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&scriptPath, "script", "", "Use this podcast script instead of generating one")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Ignore checkpoints from earlier attempts of this run")
	return cmd
}
