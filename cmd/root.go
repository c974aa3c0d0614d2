package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/introspect"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/plugin"
)

const envPrefix = "SUPERGRAPH"

const (
	flagCLIConfig            = "cli-config"
	flagLogLevel             = "log-level"
	flagConfig               = "config"
	flagFederationVersion    = "federation-version"
	flagSupergraphBinary     = "supergraph-binary"
	flagPluginDir            = "plugin-dir"
	flagOutput               = "output"
	flagIntrospectionTimeout = "introspection-timeout"
)

var cliConfigFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "supergraph",
	Short: "supergraph composes federated GraphQL subgraphs into a supergraph",
	Long: `supergraph composes the subgraphs listed in a supergraph config into a supergraph schema.

Subgraph schemas are read from files, introspected from running subgraphs or given inline.
The composition itself is done by a supergraph-v<version> binary located in the plugin dir.

Every flag can be set through the environment, e.g. SUPERGRAPH_PLUGIN_DIR for --plugin-dir.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cliConfigFile, flagCLIConfig, "", "config file of the cli itself, any flag can be set in it")
	flags.String(flagLogLevel, "info", "log level, one of debug, info, warn, error")
	flags.StringP(flagConfig, "c", "supergraph.yaml", "path to the supergraph config, - reads it from stdin")
	flags.String(flagFederationVersion, "", "federation version to compose with (1, 2 or =x.y.z), overrides the supergraph config")
	flags.String(flagSupergraphBinary, "", "path to a supergraph binary, skips the lookup in the plugin dir")
	flags.String(flagPluginDir, plugin.DefaultDir(), "directory containing supergraph-v<version> binaries")
	flags.StringP(flagOutput, "o", "", "file the supergraph schema is written to, stdout when empty")
	flags.Duration(flagIntrospectionTimeout, introspect.DefaultTimeout, "timeout of a single subgraph introspection request")

	for _, name := range []string{flagLogLevel, flagConfig, flagFederationVersion, flagSupergraphBinary, flagPluginDir, flagOutput, flagIntrospectionTimeout} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cliConfigFile == "" {
		return
	}
	viper.SetConfigFile(cliConfigFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "read cli config %s: %v\n", cliConfigFile, err)
		os.Exit(1)
	}
}

func introspectionTimeout() time.Duration {
	timeout := viper.GetDuration(flagIntrospectionTimeout)
	if timeout <= 0 {
		return introspect.DefaultTimeout
	}
	return timeout
}
