package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the CLI version
const Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	timeout time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "langlearn",
	Short: "langlearn - confidential pronunciation practice records",
	Long: `langlearn records pronunciation practice scores on a shared ledger.

Scores are encrypted before they leave this machine. Only labels,
owners and timestamps are public until the owner decrypts a score,
at which point the cleartext is verified and published on-chain.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx as the parent of every
// command context
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "langlearn %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.langlearn/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall command timeout (encryption and decryption may be slow)")
	rootCmd.PersistentFlags().String("identity", "", "identity address (default: derived from the signer key)")
	rootCmd.PersistentFlags().String("ledger-url", "", "ledger relay URL")
	rootCmd.PersistentFlags().String("relayer-url", "", "confidential-compute relayer URL")
	rootCmd.PersistentFlags().Bool("yes", false, "approve every signature without prompting")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("identity.address", rootCmd.PersistentFlags().Lookup("identity"))
	_ = viper.BindPFlag("ledger.url", rootCmd.PersistentFlags().Lookup("ledger-url"))
	_ = viper.BindPFlag("relayer.url", rootCmd.PersistentFlags().Lookup("relayer-url"))
	_ = viper.BindPFlag("identity.auto_approve", rootCmd.PersistentFlags().Lookup("yes"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// LANGLEARN_LEDGER_URL maps to ledger.url
	viper.SetEnvPrefix("LANGLEARN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".langlearn"), nil
}
