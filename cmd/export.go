package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/certi-mate/compliance-api/internal/export"
	"github.com/certi-mate/compliance-api/internal/model"
	"github.com/certi-mate/compliance-api/internal/store"
	"github.com/certi-mate/compliance-api/pkg/notion"
)

var (
	exportUser string
	exportType string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export diagnostic history to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.HistoryFilter{UserID: exportUser, Limit: cfg.Export.Limit}
		if exportType != "" {
			typ, ok := model.ParseDiagnosticType(exportType)
			if !ok {
				return eris.Errorf("unknown diagnostic type: %s", exportType)
			}
			filter.Type = typ
		}

		records, err := st.ListDiagnostics(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list diagnostics")
		}

		if err := export.WriteHistoryXLSX(records, exportOut); err != nil {
			return err
		}
		zap.L().Info("history exported",
			zap.Int("rows", len(records)),
			zap.String("path", exportOut),
		)
		return nil
	},
}

var publishUser string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish generated documents to the Notion review database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Notion.Token == "" {
			return eris.New("notion token is required (CERTIMATE_NOTION_TOKEN)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		docs, err := st.ListDocuments(ctx, publishUser, cfg.Export.Limit)
		if err != nil {
			return eris.Wrap(err, "list documents")
		}

		client := notion.NewClient(cfg.Notion.Token)
		var published int
		for _, doc := range docs {
			pageID, err := notion.PublishDocument(ctx, client, cfg.Notion.DocumentDB, doc)
			if err != nil {
				zap.L().Warn("publish failed",
					zap.String("document", doc.ID),
					zap.Error(err),
				)
				continue
			}
			published++
			zap.L().Info("document published",
				zap.String("document", doc.ID),
				zap.String("page", pageID),
			)
		}

		zap.L().Info("publish complete",
			zap.Int("total", len(docs)),
			zap.Int("published", published),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportUser, "user", "", "filter by user ID")
	exportCmd.Flags().StringVar(&exportType, "type", "", "filter by diagnostic type")
	exportCmd.Flags().StringVar(&exportOut, "out", "history.xlsx", "output path")
	rootCmd.AddCommand(exportCmd)

	publishCmd.Flags().StringVar(&publishUser, "user", "", "filter by user ID")
	rootCmd.AddCommand(publishCmd)
}
