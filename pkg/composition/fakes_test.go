package composition

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/plugin"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/process"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

// composeExecutor stands in for the composition binary: it reads the config passed to
// "compose" and joins the subgraph SDLs in name order.
type composeExecutor struct {
	mu       sync.Mutex
	inputs   []*supergraphconfig.Config
	paths    []string
	errs     []BuildError
	exitCode int
	stdout   string
	err      error
}

func (e *composeExecutor) Exec(_ context.Context, binary string, args []string, _ io.Reader) (process.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return process.Result{}, e.err
	}
	if len(args) != 2 || args[0] != "compose" {
		return process.Result{ExitCode: 2, Stderr: []byte("usage: " + binary + " compose <file>")}, nil
	}
	config, err := supergraphconfig.Load(args[1])
	if err != nil {
		return process.Result{}, err
	}
	e.inputs = append(e.inputs, config)
	e.paths = append(e.paths, args[1])

	if e.stdout != "" || e.exitCode != 0 {
		return process.Result{ExitCode: e.exitCode, Stdout: []byte(e.stdout)}, nil
	}

	var output []byte
	if len(e.errs) > 0 {
		output, _ = json.Marshal(map[string]interface{}{"Err": e.errs})
		return process.Result{ExitCode: 1, Stdout: output}, nil
	}

	sdls := make([]string, 0, len(config.Subgraphs))
	for _, name := range config.Names() {
		sdls = append(sdls, config.Subgraphs[name].Schema.(supergraphconfig.SDLSource).SDL)
	}
	output, _ = json.Marshal(map[string]interface{}{
		"Ok": map[string]interface{}{
			"supergraphSdl": strings.Join(sdls, "\n"),
			"hints":         []BuildHint{{Message: "composed " + strings.Join(config.Names(), ","), Code: "INFO"}},
		},
	})
	return process.Result{Stdout: output}, nil
}

func (e *composeExecutor) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inputs)
}

func (e *composeExecutor) setBuildErrors(errs ...BuildError) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = errs
}

type fakeInstaller struct {
	version supergraphconfig.FederationVersion
	err     error
}

func (f *fakeInstaller) Install(_ context.Context, version supergraphconfig.FederationVersion, overridePath string) (plugin.Binary, error) {
	f.version = version
	if f.err != nil {
		return plugin.Binary{}, f.err
	}
	if overridePath != "" {
		return plugin.Binary{Path: overridePath}, nil
	}
	return plugin.Binary{Path: "supergraph-v" + version.PluginVersion()}, nil
}

var errNotInstalled = errors.New("not installed")
