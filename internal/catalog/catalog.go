// Package catalog holds the static domain catalog and the test query set used
// by the routing experiment.
//
// The catalog is immutable once loaded. The default catalog is embedded in the
// binary; an alternative file with the same schema can be supplied with Load.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrUnknownDomain is returned when a name does not match any catalog domain.
var ErrUnknownDomain = errors.New("unknown domain")

// SubAgent is a specific handler nested under a domain agent.
type SubAgent struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Domain describes one business category a query can be routed to.
type Domain struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Keywords    []string   `yaml:"keywords"`
	Examples    []string   `yaml:"examples"`
	SubAgents   []SubAgent `yaml:"sub_agents"`

	// Note clarifies ownership when the domain overlaps with another one.
	Note string `yaml:"note,omitempty"`
}

// Query is a test query paired with the domain it is expected to reach.
type Query struct {
	Text     string `yaml:"text"`
	Expected string `yaml:"expected"`
}

// RoutingHint maps ambiguous phrases to the domain that owns them.
type RoutingHint struct {
	Phrases []string `yaml:"phrases"`
	Domain  string   `yaml:"domain"`
}

// Catalog is the full set of domains, routing hints and test queries.
type Catalog struct {
	Domains []Domain      `yaml:"domains"`
	Hints   []RoutingHint `yaml:"hints"`
	Queries []Query       `yaml:"queries"`

	index map[string]int
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	var c Catalog
	if err := yamlv3.Unmarshal(defaultCatalog, &c); err != nil {
		return nil, fmt.Errorf("failed to parse embedded catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("embedded catalog is invalid: %w", err)
	}
	return &c, nil
}

// Load reads a catalog file with the same schema as the embedded one.
func Load(path string) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load catalog from %q: %w", path, err)
	}

	var c Catalog
	if err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse catalog from %q: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog validation failed for %q: %w", path, err)
	}
	return &c, nil
}

// Validate checks the catalog for structural problems and builds the name index.
// All problems are reported at once.
func (c *Catalog) Validate() error {
	var errs []error

	if len(c.Domains) == 0 {
		errs = append(errs, errors.New("catalog has no domains"))
	}

	index := make(map[string]int, len(c.Domains))
	for i, d := range c.Domains {
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Errorf("domain %d: name must not be empty", i))
			continue
		}
		if _, dup := index[d.Name]; dup {
			errs = append(errs, fmt.Errorf("domain %q: duplicate name", d.Name))
			continue
		}
		index[d.Name] = i

		seen := make(map[string]bool, len(d.SubAgents))
		for _, s := range d.SubAgents {
			if strings.TrimSpace(s.Name) == "" {
				errs = append(errs, fmt.Errorf("domain %q: sub-agent name must not be empty", d.Name))
				continue
			}
			if seen[s.Name] {
				errs = append(errs, fmt.Errorf("domain %q: duplicate sub-agent %q", d.Name, s.Name))
			}
			seen[s.Name] = true
		}
	}

	for i, q := range c.Queries {
		if strings.TrimSpace(q.Text) == "" {
			errs = append(errs, fmt.Errorf("query %d: text must not be empty", i+1))
		}
		if strings.TrimSpace(q.Expected) == "" {
			errs = append(errs, fmt.Errorf("query %d: expected domain must not be empty", i+1))
			continue
		}
		if _, ok := index[q.Expected]; !ok {
			errs = append(errs, fmt.Errorf("query %d: expected domain %q: %w", i+1, q.Expected, ErrUnknownDomain))
		}
	}

	for _, h := range c.Hints {
		if _, ok := index[h.Domain]; !ok {
			errs = append(errs, fmt.Errorf("routing hint %q: %w", h.Domain, ErrUnknownDomain))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	c.index = index
	return nil
}

// Lookup returns the domain with the given name.
func (c *Catalog) Lookup(name string) (Domain, error) {
	if c.index == nil {
		if err := c.Validate(); err != nil {
			return Domain{}, err
		}
	}
	i, ok := c.index[name]
	if !ok {
		return Domain{}, fmt.Errorf("%q: %w", name, ErrUnknownDomain)
	}
	return c.Domains[i], nil
}

// Names returns the domain names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Domains))
	for _, d := range c.Domains {
		names = append(names, d.Name)
	}
	return names
}

// Select returns the first n test queries. n is clamped to [1, len(Queries)].
func (c *Catalog) Select(n int) []Query {
	if len(c.Queries) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if n > len(c.Queries) {
		n = len(c.Queries)
	}
	out := make([]Query, n)
	copy(out, c.Queries[:n])
	return out
}

// LabelCounts counts how many queries expect each domain.
func LabelCounts(queries []Query) map[string]int {
	counts := make(map[string]int)
	for _, q := range queries {
		counts[q.Expected]++
	}
	return counts
}

// CentralAgentName is the agent name of a domain in the centralized topology.
func CentralAgentName(domain string) string {
	return domain + "_agent"
}

// DomainAgentName is the agent name of a domain in the distributed topology.
func DomainAgentName(domain string) string {
	return domain + "_domain"
}

// SubAgentName is the agent name of a sub-agent in the distributed topology.
func SubAgentName(domain, sub string) string {
	return domain + "_" + sub
}

// Title turns a snake_case domain name into a display title.
func Title(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
