package supergraphconfig

import "sort"

// Diff lists the subgraphs added to and removed from a config between two parses.
// Only names are compared: a subgraph whose schema source changed under the same name
// is neither added nor removed.
type Diff struct {
	Added   []NamedSubgraph
	Removed []string
}

// Compute returns the name-set difference between previous and next. Both lists are sorted by name.
func Compute(previous, next *Config) Diff {
	var diff Diff

	for name, subgraph := range next.subgraphs() {
		if _, ok := previous.subgraphs()[name]; !ok {
			diff.Added = append(diff.Added, NamedSubgraph{Name: name, Config: subgraph})
		}
	}
	for name := range previous.subgraphs() {
		if _, ok := next.subgraphs()[name]; !ok {
			diff.Removed = append(diff.Removed, name)
		}
	}

	sort.Slice(diff.Added, func(i, j int) bool {
		return diff.Added[i].Name < diff.Added[j].Name
	})
	sort.Strings(diff.Removed)

	return diff
}

func (d Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// AddedNames returns the names of the added subgraphs.
func (d Diff) AddedNames() []string {
	names := make([]string, 0, len(d.Added))
	for _, added := range d.Added {
		names = append(names, added.Name)
	}
	return names
}

// Apply folds the diff over c and returns the result. c is not modified.
func (d Diff) Apply(c *Config) *Config {
	next := New()
	if c != nil {
		next = c.Clone()
	}
	for _, name := range d.Removed {
		delete(next.Subgraphs, name)
	}
	for _, added := range d.Added {
		next.Subgraphs[added.Name] = added.Config
	}
	return next
}

func (c *Config) subgraphs() map[string]SubgraphConfig {
	if c == nil {
		return nil
	}
	return c.Subgraphs
}
