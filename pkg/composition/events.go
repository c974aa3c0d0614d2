package composition

import (
	"fmt"
	"strings"

	"github.com/wundergraph/graphql-go-tools/supergraph/pkg/supergraphconfig"
)

// Event is published by the CompositionWatcher.
type Event interface {
	compositionEvent()
}

// Started is published right before a composition runs.
type Started struct{}

// Success carries a composed supergraph.
type Success struct {
	SupergraphSDL     string
	Hints             []BuildHint
	FederationVersion supergraphconfig.FederationVersion
}

// Failure is published when a composition did not produce a supergraph.
// BuildErrors is set when the composition binary rejected the subgraphs,
// Err when the binary could not run at all.
type Failure struct {
	BuildErrors *BuildErrors
	Err         error
}

func (Started) compositionEvent() {}
func (Success) compositionEvent() {}
func (Failure) compositionEvent() {}

// Error returns the failure as a single error.
func (f Failure) Error() error {
	if f.BuildErrors != nil {
		return f.BuildErrors
	}
	return f.Err
}

// BuildNode points at the subgraph location an error or hint refers to.
type BuildNode struct {
	Subgraph string `json:"subgraph,omitempty"`
	Source   string `json:"source,omitempty"`
}

type BuildError struct {
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Nodes   []BuildNode `json:"nodes,omitempty"`
}

func (e BuildError) String() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

type BuildHint struct {
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Nodes   []BuildNode `json:"nodes,omitempty"`
}

// BuildErrors is returned when composition failed.
type BuildErrors struct {
	Errors   []BuildError
	ExitCode int
}

func (b *BuildErrors) Error() string {
	messages := make([]string, 0, len(b.Errors))
	for _, e := range b.Errors {
		messages = append(messages, e.String())
	}
	if len(messages) == 1 {
		return "composition failed: " + messages[0]
	}
	return fmt.Sprintf("composition failed with %d errors: %s", len(messages), strings.Join(messages, "; "))
}
