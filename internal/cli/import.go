package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/edukit/gradebatch/internal/records"
)

// NewImportCmd creates the import command group for bulk CSV loads.
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk-load students or grades from CSV",
	}
	cmd.AddCommand(newImportStudentsCmd(), newImportGradesCmd())
	return cmd
}

func newImportStudentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "students <file.csv>",
		Short: "Import student rows (studentID,name,age,email,phone,type)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			svc, cleanup, err := openService(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := svc.ImportStudents(cmd.Context(), f)
			if err != nil {
				return err
			}
			printImportResult(cmd, res)
			return nil
		},
	}
}

func newImportGradesCmd() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "grades <file.csv>",
		Short: "Import grade rows (studentID,subjectName,subjectType,value)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			svc, cleanup, err := openService(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := svc.ImportGrades(cmd.Context(), f, overwrite)
			if err != nil {
				return err
			}
			printImportResult(cmd, res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing grades for the same subject")
	return cmd
}

func printImportResult(cmd *cobra.Command, res records.ImportResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d rows\n", res.Imported, res.TotalRows)
	for _, failure := range res.Failures {
		fmt.Fprintf(cmd.OutOrStdout(), "  rejected %s\n", failure)
	}
}
