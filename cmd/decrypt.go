package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geckyzz/nyaa-comments/internal/backup"
)

// newDecryptCmd creates the 'decrypt' subcommand: the exact inverse of the
// backup pipeline, recovering a snapshot from a downloaded artifact and the
// key announced on the webhook.
func newDecryptCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "decrypt <artifact> <key>",
		Short: "Decrypts and extracts an encrypted snapshot backup",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := backup.Unpackage(args[0], args[1], output); err != nil {
				if errors.Is(err, backup.ErrIntegrity) {
					return fmt.Errorf("decrypt %s: %w (wrong key, or the artifact is corrupted)", args[0], err)
				}
				return err
			}
			fmt.Printf("Decrypted snapshot written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "database.json", "output file path")
	return cmd
}
