package composition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jensneuse/abstractlogger"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/metrics"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/plugin"
	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/process"
)

type composeOutput struct {
	Ok *struct {
		SupergraphSDL string      `json:"supergraphSdl"`
		Hints         []BuildHint `json:"hints"`
	} `json:"Ok"`
	Err []BuildError `json:"Err"`
}

// Composer runs the composition binary against a FullyResolvedConfig.
type Composer struct {
	binary   plugin.Binary
	executor process.Executor
	tempDir  string
	logger   abstractlogger.Logger
	metrics  *metrics.Metrics
}

// NewComposer returns a Composer writing its temporary config files to tempDir, os.TempDir() when empty.
func NewComposer(binary plugin.Binary, executor process.Executor, tempDir string, logger abstractlogger.Logger, m *metrics.Metrics) *Composer {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	return &Composer{
		binary:   binary,
		executor: executor,
		tempDir:  tempDir,
		logger:   logger,
		metrics:  m,
	}
}

func (c *Composer) Binary() plugin.Binary {
	return c.binary
}

// Compose writes config to a temporary file and runs "<binary> compose <file>".
// A rejected composition is returned as *BuildErrors, a binary that could not be started wraps process.ErrStart.
func (c *Composer) Compose(ctx context.Context, config *FullyResolvedConfig) (Success, error) {
	start := time.Now()
	success, err := c.compose(ctx, config)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailure
	}
	c.metrics.ObserveComposition(result, time.Since(start))
	return success, err
}

func (c *Composer) compose(ctx context.Context, config *FullyResolvedConfig) (Success, error) {
	data, err := config.Marshal()
	if err != nil {
		return Success{}, err
	}

	path := filepath.Join(c.tempDir, fmt.Sprintf("supergraph-%s.yaml", uuid.NewString()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Success{}, fmt.Errorf("write composition input: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			c.logger.Warn("Composer.Compose",
				abstractlogger.String("path", path),
				abstractlogger.Error(err),
			)
		}
	}()

	c.logger.Debug("Composer.Compose",
		abstractlogger.String("binary", c.binary.Path),
		abstractlogger.String("federationVersion", config.FederationVersion.String()),
		abstractlogger.Int("subgraphs", len(config.Subgraphs)),
	)

	result, err := c.executor.Exec(ctx, c.binary.Path, []string{"compose", path}, nil)
	if err != nil {
		return Success{}, err
	}

	var output composeOutput
	if err := json.NewDecoder(bytes.NewReader(result.Stdout)).Decode(&output); err != nil || (output.Ok == nil && output.Err == nil) {
		return Success{}, invalidOutput(result)
	}
	if len(output.Err) > 0 {
		return Success{}, &BuildErrors{Errors: output.Err, ExitCode: result.ExitCode}
	}
	if !result.Success() || output.Ok == nil {
		return Success{}, invalidOutput(result)
	}

	return Success{
		SupergraphSDL:     output.Ok.SupergraphSDL,
		Hints:             output.Ok.Hints,
		FederationVersion: config.FederationVersion,
	}, nil
}

func invalidOutput(result process.Result) *BuildErrors {
	message := strings.TrimSpace(string(result.Stderr))
	if message == "" {
		message = strings.TrimSpace(string(result.Stdout))
	}
	if message == "" {
		message = "no output"
	}
	return &BuildErrors{
		Errors:   []BuildError{{Message: "invalid composition output: " + message, Code: "INVALID_OUTPUT"}},
		ExitCode: result.ExitCode,
	}
}
