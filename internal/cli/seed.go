package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSeedCmd creates the seed command, which fills the gradebook with
// a deterministic demo roster for trying out exports.
func NewSeedCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the gradebook with a demo roster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			svc, cleanup, err := openService(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := svc.SeedDemo(cmd.Context(), count)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d students into %s\n", n, cfg.DBPath())
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "students", 25, "number of demo students to create")
	return cmd
}
