package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newTypesCmd creates the 'types' subcommand listing registered worker types.
func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List registered worker type names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range appInstance.WorkerTypes() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return fmt.Errorf("write type name: %w", err)
				}
			}
			return nil
		},
	}
}
