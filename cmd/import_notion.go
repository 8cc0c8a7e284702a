package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/notionsync"
	"github.com/sells-group/dashboard-api/pkg/notion"
)

var importDatabaseID string

var importNotionCmd = &cobra.Command{
	Use:   "import-notion",
	Short: "Import contacts from a Notion database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}
		dbID := importDatabaseID
		if dbID == "" {
			dbID = cfg.Notion.DatabaseID
		}
		if dbID == "" {
			return eris.New("notion database ID is required (--database or DASHBOARD_NOTION_DATABASE_ID)")
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close() //nolint:errcheck

		client := notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit))
		stats, err := notionsync.NewImporter(client, st).Import(ctx, dbID)
		if err != nil {
			return eris.Wrap(err, "import notion")
		}

		zap.L().Info("import complete",
			zap.String("database_id", dbID),
			zap.Int("created", stats.Created),
			zap.Int("updated", stats.Updated),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
		)
		if stats.Failed > 0 {
			return eris.Errorf("%d contacts failed to import", stats.Failed)
		}
		return nil
	},
}

func init() {
	importNotionCmd.Flags().StringVar(&importDatabaseID, "database", "", "Notion database ID (default from config)")
	rootCmd.AddCommand(importNotionCmd)
}
