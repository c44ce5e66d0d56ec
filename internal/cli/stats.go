package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var statsJSON bool

// statsCmd prints learning statistics of the connected identity
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics for the connected identity",
	Long: `Stats aggregates the connected identity's records. Verified scores are
used where available, public values otherwise.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		a, err := openApp(ctx, cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		st := a.session.Stats()
		if statsJSON {
			return renderJSON(a.stdout, st)
		}
		return renderStats(a.stdout, st)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output JSON")
}
