package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/certi-mate/compliance-api/internal/access"
	"github.com/certi-mate/compliance-api/internal/model"
)

var adminAs string

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage user roles and tiers",
}

// adminGate wires a gate for CLI admin commands. The --as flag names the
// acting admin; with enforcement off locally the flag can be omitted.
func adminGate(cmd *cobra.Command) (*access.Gate, model.Caller, func(), error) {
	ctx := cmd.Context()
	st, err := initStore(ctx)
	if err != nil {
		return nil, model.Caller{}, nil, err
	}
	gate := access.New(st, cfg.Access.Enforce)
	return gate, gate.Resolve(ctx, adminAs), func() { st.Close() }, nil
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role <user-id> <role>",
	Short: "Set a user's role (user, admin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		gate, caller, done, err := adminGate(cmd)
		if err != nil {
			return err
		}
		defer done()

		if err := gate.SetRole(cmd.Context(), caller, args[0], model.Role(args[1])); err != nil {
			return eris.Wrap(err, "set role")
		}
		zap.L().Info("role updated", zap.String("user", args[0]), zap.String("role", args[1]))
		return nil
	},
}

var setTierCmd = &cobra.Command{
	Use:   "set-tier <user-id> <tier>",
	Short: "Set a user's subscription tier (free, pro)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		gate, caller, done, err := adminGate(cmd)
		if err != nil {
			return err
		}
		defer done()

		if err := gate.SetTier(cmd.Context(), caller, args[0], model.Tier(args[1])); err != nil {
			return eris.Wrap(err, "set tier")
		}
		zap.L().Info("tier updated", zap.String("user", args[0]), zap.String("tier", args[1]))
		return nil
	},
}

func init() {
	adminCmd.PersistentFlags().StringVar(&adminAs, "as", "", "user ID of the acting admin")
	adminCmd.AddCommand(setRoleCmd)
	adminCmd.AddCommand(setTierCmd)
	rootCmd.AddCommand(adminCmd)
}
