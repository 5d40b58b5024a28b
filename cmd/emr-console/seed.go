package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emr/console/internal/platform/sandbox"
)

func seedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed [resource...]",
		Short: "Create demo records through the backend",
		Long:  "Create demo records through the backend. Supported resources: " + strings.Join(sandbox.Supported(), ", ") + ".",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			seed, _ := cmd.Flags().GetInt64("seed")
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			if len(args) == 0 {
				args = sandbox.Supported()
			}

			seeder := sandbox.NewSeeder(seed, zerolog.Nop())
			out := cmd.OutOrStdout()
			for _, slug := range args {
				res, err := lookup(slug)
				if err != nil {
					return err
				}
				m, closeManager, err := a.open(cmd, res)
				if err != nil {
					return err
				}
				result, err := seeder.Seed(cmd.Context(), m, count)
				closeManager()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %d created, %d failed\n", result.Resource, result.Created, result.Failed)
			}
			return nil
		},
	}
	cmd.Flags().Int("count", 10, "Records to create per resource")
	cmd.Flags().Int64("seed", 0, "Random seed, 0 picks one from the clock")
	return cmd
}
