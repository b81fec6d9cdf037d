// Command proxtrend serves a live two-channel proximity trend for one sorter
// bed at a time.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/proxtrend/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	v := config.New()
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "proxtrend",
		Short: "Live proximity sensor trend for sorter beds",
		Long: `Proxtrend samples the two proximity sensors of one sorter bed and
serves a live trend chart that can be paused and scrubbed.

Examples:
  proxtrend serve --config=/etc/proxtrend.toml
  proxtrend serve --addr=:9090 --bed=B1001
  proxtrend read --bed=B2003
  proxtrend beds`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to TOML config file (optional)")

	root.AddCommand(
		newServeCommand(v, flags),
		newReadCommand(v, flags),
		newBedsCommand(v, flags),
	)
	return root
}

// loadConfig reads the config file named by --config, with bound flags and
// environment taking precedence.
func loadConfig(v *viper.Viper, flags *globalFlags) (config.Config, error) {
	return config.Load(v, flags.configPath)
}

// bindFlag binds a command flag to a viper key. Unchanged flags leave file
// values alone.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(err)
	}
}
