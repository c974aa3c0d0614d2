package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	log "github.com/jensneuse/abstractlogger"
	"github.com/spf13/viper"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/composition"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/introspect"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/plugin"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/process"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

// configInput maps the --config flag to the pipeline input, "-" reads from stdin.
func configInput(path string, stdin io.Reader) composition.ConfigInput {
	if path == "-" {
		return composition.ConfigInput{Stdin: stdin}
	}
	return composition.ConfigInput{Path: path}
}

func federationOverride() (*supergraphconfig.FederationVersion, error) {
	raw := viper.GetString(flagFederationVersion)
	if raw == "" {
		return nil, nil
	}
	version, err := supergraphconfig.ParseFederationVersion(raw)
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// runStage drives the pipeline up to the point where compositions can run.
func runStage(ctx context.Context, logger log.Logger, stdin io.Reader, opts ...composition.Option) (*composition.RunStage, error) {
	override, err := federationOverride()
	if err != nil {
		return nil, err
	}

	opts = append([]composition.Option{
		composition.WithLogger(logger),
		composition.WithIntrospector(introspect.New(&http.Client{Timeout: introspectionTimeout()})),
		composition.WithInstaller(plugin.NewLocalInstaller(viper.GetString(flagPluginDir), logger)),
		composition.WithExecutor(process.NewOSExecutor(logger)),
	}, opts...)

	loaded, err := composition.NewPipeline(opts...).LoadSupergraphConfig(ctx, configInput(viper.GetString(flagConfig), stdin))
	if err != nil {
		return nil, err
	}
	resolved, err := loaded.ResolveFederationVersion(ctx, override)
	if err != nil {
		return nil, err
	}
	run, err := resolved.InstallSupergraph(ctx, viper.GetString(flagSupergraphBinary))
	if err != nil {
		return nil, err
	}

	for name, resolveErr := range run.ResolveErrors() {
		logger.Warn("supergraph.runStage",
			log.String("subgraph", name),
			log.Error(resolveErr),
		)
	}
	logger.Info("supergraph.runStage",
		log.String("federationVersion", run.FederationVersion().String()),
		log.String("binary", run.Binary().Path),
	)
	return run, nil
}

// writeSupergraph writes sdl to path, or to w when path is empty.
func writeSupergraph(w io.Writer, path, sdl string) error {
	if path == "" {
		_, err := fmt.Fprintln(w, sdl)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sdl), 0o644)
}

func logHints(logger log.Logger, hints []composition.BuildHint) {
	for _, hint := range hints {
		logger.Info("supergraph.hint",
			log.String("code", hint.Code),
			log.String("message", hint.Message),
		)
	}
}
