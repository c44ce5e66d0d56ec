package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// checkCmd asks the ledger whether the confidential system is available
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the confidential compute system is available",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		a, err := newApp(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.session.CheckAvailability(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("confidential compute system is not available")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
