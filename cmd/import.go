package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glenross/fundly-bot/internal/importer"
	"github.com/glenross/fundly-bot/internal/model"
	"github.com/glenross/fundly-bot/internal/pipeline"
)

var (
	importFile  string
	importSheet string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from an XLSX or CSV export",
	Long:  "Reads a lead export, runs each row through the normalizers and program rules, and bulk-upserts the results. Existing derived values are kept when a row cannot supply them.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if importFile == "" {
			return eris.New("cmd: --file is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		raws, err := importer.ReadFile(importFile, importer.Options{SheetName: importSheet})
		if err != nil {
			return err
		}
		if len(raws) == 0 {
			zap.L().Warn("no leads found in file", zap.String("file", importFile))
			return nil
		}

		now := time.Now().UTC()
		leads := make([]model.Lead, 0, len(raws))
		for _, raw := range raws {
			lead, _ := pipeline.Assemble(raw, now)
			leads = append(leads, lead)
		}

		n, err := st.BulkUpsertLeads(ctx, leads)
		if err != nil {
			return err
		}
		zap.L().Info("import complete",
			zap.String("file", importFile),
			zap.Int("rows", len(raws)),
			zap.Int64("upserted", n))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to the .xlsx or .csv export")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name (first sheet when empty)")
	rootCmd.AddCommand(importCmd)
}
