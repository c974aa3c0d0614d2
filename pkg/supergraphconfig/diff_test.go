package supergraphconfig

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func configWith(names ...string) *Config {
	config := New()
	for _, name := range names {
		config.Subgraphs[name] = SubgraphConfig{
			RoutingURL: "http://localhost/" + name,
			Schema:     FileSource{Path: name + ".graphql"},
		}
	}
	return config
}

func TestCompute(t *testing.T) {
	t.Run("added and removed", func(t *testing.T) {
		diff := Compute(configWith("accounts", "products"), configWith("accounts", "reviews", "inventory"))
		assert.Equal(t, []string{"inventory", "reviews"}, diff.AddedNames())
		assert.Equal(t, []string{"products"}, diff.Removed)
		assert.Equal(t, FileSource{Path: "reviews.graphql"}, diff.Added[1].Config.Schema)

		want := Diff{
			Added: []NamedSubgraph{
				{Name: "inventory", Config: SubgraphConfig{RoutingURL: "http://localhost/inventory", Schema: FileSource{Path: "inventory.graphql"}}},
				{Name: "reviews", Config: SubgraphConfig{RoutingURL: "http://localhost/reviews", Schema: FileSource{Path: "reviews.graphql"}}},
			},
			Removed: []string{"products"},
		}
		if d := cmp.Diff(want, diff); d != "" {
			t.Errorf("Compute() mismatch (-want +got):\n%s", d)
		}
	})

	t.Run("identical configs", func(t *testing.T) {
		config := configWith("accounts", "products")
		assert.True(t, Compute(config, config).IsEmpty())
	})

	t.Run("source change under the same name is not a diff", func(t *testing.T) {
		previous := configWith("accounts")
		next := configWith("accounts")
		next.Subgraphs["accounts"] = SubgraphConfig{Schema: SDLSource{SDL: "type Query { a: Int }"}}
		assert.True(t, Compute(previous, next).IsEmpty())
	})

	t.Run("from nothing", func(t *testing.T) {
		diff := Compute(nil, configWith("a", "b"))
		assert.Equal(t, []string{"a", "b"}, diff.AddedNames())
		assert.Empty(t, diff.Removed)
	})

	t.Run("to nothing", func(t *testing.T) {
		diff := Compute(configWith("a", "b"), New())
		assert.Empty(t, diff.Added)
		assert.Equal(t, []string{"a", "b"}, diff.Removed)
	})
}

func TestCompute_Properties(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	universe := []string{"a", "b", "c", "d", "e", "f", "g"}

	randomConfig := func() *Config {
		var names []string
		for _, name := range universe {
			if rnd.Intn(2) == 0 {
				names = append(names, name)
			}
		}
		return configWith(names...)
	}

	difference := func(left, right *Config) []string {
		var names []string
		for name := range left.Subgraphs {
			if _, ok := right.Subgraphs[name]; !ok {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		return names
	}

	for i := 0; i < 200; i++ {
		previous, next := randomConfig(), randomConfig()
		t.Run(fmt.Sprintf("%v->%v", previous.Names(), next.Names()), func(t *testing.T) {
			diff := Compute(previous, next)

			assert.ElementsMatch(t, difference(next, previous), diff.AddedNames())
			assert.ElementsMatch(t, difference(previous, next), diff.Removed)
			assert.True(t, Compute(previous, previous).IsEmpty())
			assert.Equal(t, next.Names(), diff.Apply(previous).Names())
		})
	}
}

func TestDiff_Apply(t *testing.T) {
	initial := configWith("accounts", "products")
	diffs := []Diff{
		{Added: []NamedSubgraph{{Name: "reviews", Config: configWith("reviews").Subgraphs["reviews"]}}},
		{Removed: []string{"products"}},
		{Added: []NamedSubgraph{{Name: "products", Config: configWith("products").Subgraphs["products"]}}, Removed: []string{"accounts"}},
	}

	current := initial
	for _, diff := range diffs {
		current = diff.Apply(current)
	}

	if d := cmp.Diff(configWith("products", "reviews").Subgraphs, current.Subgraphs); d != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", d)
	}
	assert.Equal(t, []string{"accounts", "products"}, initial.Names(), "apply must not modify its input")
}
