package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/certi-mate/compliance-api/internal/model"
	"github.com/certi-mate/compliance-api/internal/store"
)

var (
	historyUser  string
	historyType  string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored diagnostic results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.HistoryFilter{UserID: historyUser, Limit: historyLimit}
		if historyType != "" {
			typ, ok := model.ParseDiagnosticType(historyType)
			if !ok {
				return eris.Errorf("unknown diagnostic type: %s", historyType)
			}
			filter.Type = typ
		}

		records, err := st.ListDiagnostics(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list diagnostics")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyUser, "user", "", "filter by user ID")
	historyCmd.Flags().StringVar(&historyType, "type", "", "filter by diagnostic type")
	historyCmd.Flags().IntVar(&historyLimit, "limit", store.DefaultHistoryLimit, "maximum rows")
	rootCmd.AddCommand(historyCmd)
}
