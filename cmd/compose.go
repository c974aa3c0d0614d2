package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/composition"
)

// composeCmd represents the compose command
var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Composes the supergraph schema once",
	Long: `Composes the subgraphs of the supergraph config into a supergraph schema.

Subgraphs that cannot be resolved are reported and left out of the composition.
Composition errors are printed to stderr and make the command exit with a non-zero code.`,
	Example: `supergraph compose -c supergraph.yaml -o supergraph.graphql
cat supergraph.yaml | supergraph compose -c - --federation-version =2.3.2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, sync, err := newLogger(viper.GetString(flagLogLevel))
		if err != nil {
			return err
		}
		defer sync()

		run, err := runStage(cmd.Context(), logger, cmd.InOrStdin())
		if err != nil {
			return err
		}

		success, err := run.Compose(cmd.Context())
		if err != nil {
			var buildErrors *composition.BuildErrors
			if errors.As(err, &buildErrors) {
				for _, buildError := range buildErrors.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), buildError.String())
				}
			}
			return err
		}

		logHints(logger, success.Hints)
		return writeSupergraph(cmd.OutOrStdout(), viper.GetString(flagOutput), success.SupergraphSDL)
	},
}

func init() {
	rootCmd.AddCommand(composeCmd)
}
