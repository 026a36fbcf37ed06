package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thinkscotty/podcaster/internal/auth"
)

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "keygen",
		Short:       "Generate a trigger key and its hash for server.trigger_key_hash",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, hash, err := auth.GenerateKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Key:  %s\n", key)
			fmt.Fprintf(out, "Hash: %s\n\n", hash)
			fmt.Fprintln(out, "Put the hash in config.yaml under server.trigger_key_hash and")
			fmt.Fprintln(out, "send the key as \"Authorization: Bearer <key>\" to POST /api/cron.")
			return nil
		},
	}
}
