// Package subgraphtesting serves federated subgraphs over HTTP for tests.
//
// A Subgraph only answers the federation service query `{ _service { sdl } }`,
// which is all that introspecting a subgraph for composition needs.
package subgraphtesting

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
)

const (
	AccountsSDL = `type Query { me: User } type User @key(fields: "id") { id: ID! username: String! }`
	ProductsSDL = `extend schema @link(url: "https://specs.apollo.dev/federation/v2.3", import: ["@key"]) type Query { topProducts(first: Int = 5): [Product] } type Product @key(fields: "upc") { upc: String! name: String! }`
)

// Subgraph is a fake subgraph whose SDL can be swapped while it is served.
type Subgraph struct {
	sdl         atomic.String
	unsupported atomic.Bool
	requests    atomic.Int64

	mu     sync.Mutex
	header http.Header
}

func New(sdl string) *Subgraph {
	s := &Subgraph{}
	s.sdl.Store(sdl)
	return s
}

// SetSDL changes the SDL returned by the following requests.
func (s *Subgraph) SetSDL(sdl string) {
	s.sdl.Store(sdl)
}

// SetUnsupported makes the subgraph reject the service query like a non federated GraphQL server does.
func (s *Subgraph) SetUnsupported(unsupported bool) {
	s.unsupported.Store(unsupported)
}

// Requests returns the number of service queries answered so far.
func (s *Subgraph) Requests() int64 {
	return s.requests.Load()
}

// Header returns the headers of the last request.
func (s *Subgraph) Header() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header.Clone()
}

func (s *Subgraph) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.header = r.Header.Clone()
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if s.unsupported.Load() || !strings.Contains(gjson.GetBytes(body, "query").String(), "_service") {
			writeJSON(w, map[string]interface{}{
				"errors": []map[string]string{{"message": `Cannot query field "_service" on type "Query".`}},
			})
			return
		}

		s.requests.Inc()
		writeJSON(w, map[string]interface{}{
			"data": map[string]interface{}{
				"_service": map[string]string{"sdl": s.sdl.Load()},
			},
		})
	})
}

// Start serves the subgraph until the test ends and returns its URL.
func (s *Subgraph) Start(t testing.TB) string {
	t.Helper()
	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)
	return server.URL + "/graphql"
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	_ = json.NewEncoder(w).Encode(v)
}
