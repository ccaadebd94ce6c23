package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"catalog-service/internal/repository"
	"catalog-service/internal/service"
)

// repairCmd rebuilds every base product's variants list.
var repairCmd = &cobra.Command{
	Use:   "repair-links",
	Short: "Reconcile base and variant links",
	Long: `Rebuild the variants list of every BASE product from the base reference
stored on its variants. Ids of missing or foreign products are dropped and
variants naming a missing base are reported as orphans.

Examples:
  catalogctl repair-links
  catalogctl repair-links --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.logger.Sync()

		pool, err := e.pool(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		linker := service.NewVariantLinker(repository.NewProductRepository(pool), e.logger)
		report, err := linker.RepairAll(cmd.Context())
		if err != nil {
			return err
		}
		return printReport(cmd.OutOrStdout(), report, jsonOutput)
	},
}

func printReport(w io.Writer, report *service.RepairReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err := fmt.Fprintf(w, "checked %d base products, repaired %d, %d orphaned variants\n",
		report.Checked, report.Repaired, report.Orphans)
	return err
}

func init() {
	rootCmd.AddCommand(repairCmd)
}
