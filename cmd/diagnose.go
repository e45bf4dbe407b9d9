package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/certi-mate/compliance-api/internal/model"
)

var (
	diagnoseType  string
	diagnoseUser  string
	diagnoseInput model.ProductInput
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Run a single diagnostic from the command line",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ, ok := model.ParseDiagnosticType(diagnoseType)
		if !ok {
			return eris.Errorf("unknown diagnostic type: %s", diagnoseType)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		caller := env.Gate.Resolve(ctx, diagnoseUser)
		result, err := env.Orch.Run(ctx, typ, diagnoseInput, caller)
		if err != nil {
			return eris.Wrap(err, "run diagnostic")
		}

		zap.L().Info("diagnostic complete",
			zap.String("type", string(typ)),
			zap.String("product", diagnoseInput.ProductName),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	f := diagnoseCmd.Flags()
	f.StringVar(&diagnoseType, "type", "regulatory", "diagnostic type (regulatory, risk, ip, labeling, export, subsidy, document)")
	f.StringVar(&diagnoseUser, "user", "", "user ID to attribute the diagnostic to")
	f.StringVar(&diagnoseInput.ProductName, "name", "", "product name (required)")
	f.StringVar(&diagnoseInput.Category, "category", "", "product category (required)")
	f.StringVar(&diagnoseInput.Description, "description", "", "product description (required)")
	f.StringVar(&diagnoseInput.Weight, "weight", "", "product weight")
	f.StringVar(&diagnoseInput.Manufacturer, "manufacturer", "", "manufacturer name")
	f.StringVar(&diagnoseInput.UsageEnvironment, "usage-environment", "", "where the product is used")
	f.StringVar(&diagnoseInput.TargetUser, "target-user", "", "intended user group")
	f.StringVar(&diagnoseInput.Materials, "materials", "", "materials used")
	f.StringVar(&diagnoseInput.PowerSource, "power-source", "", "power source")
	f.StringVar(&diagnoseInput.CompanyStage, "company-stage", "", "company stage (subsidy diagnostics)")
	f.StringVar(&diagnoseInput.Location, "location", "", "company location (subsidy diagnostics)")
	f.StringVar(&diagnoseInput.InterestArea, "interest-area", "", "subsidy interest area")
	f.StringVar(&diagnoseInput.DocumentType, "document-type", "", "document type (document diagnostics)")
	_ = diagnoseCmd.MarkFlagRequired("name")
	_ = diagnoseCmd.MarkFlagRequired("category")
	_ = diagnoseCmd.MarkFlagRequired("description")
	rootCmd.AddCommand(diagnoseCmd)
}
