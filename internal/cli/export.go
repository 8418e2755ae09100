package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edukit/gradebatch/internal/export"
	"github.com/edukit/gradebatch/internal/service"
)

// NewExportCmd creates the export command: one full batch run over
// every student in the store, with a live progress line and a summary.
func NewExportCmd() *cobra.Command {
	var (
		format    string
		outputDir string
		workers   int
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export grade reports for every student",
		Example: `  # Export with the configured format and worker count
  gradebatch export

  # Export every format with 8 workers
  gradebatch export --format all --workers 8 --output ./reports`,
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

			opts := service.RunOptions{
				Format:    format,
				OutputDir: outputDir,
				Workers:   workers,
			}
			if !quiet {
				opts.Progress = cmd.OutOrStdout()
			}

			summary, err := svc.RunExport(cmd.Context(), opts)
			if err != nil {
				return err
			}
			export.WriteSummary(cmd.OutOrStdout(), summary)
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d reports failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "report format: csv, json, binary or all (default from config)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default from config)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "worker count (default from config)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress the live progress line")

	return cmd
}
