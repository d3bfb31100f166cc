package routing

import (
	"fmt"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"

	"github.com/moolen/routebench/internal/catalog"
)

// Root agent names.
const (
	CentralCoordinatorName     = "central_coordinator"
	DistributedCoordinatorName = "distributed_coordinator"
	DirectRouterName           = "direct_router"
)

// NodeKind describes what a node does with a query.
type NodeKind int

const (
	// KindRouter delegates to one of its child agents.
	KindRouter NodeKind = iota
	// KindClassifier names one of its children's labels in its reply
	// without delegating.
	KindClassifier
	// KindHandler answers the query and reports its own label.
	KindHandler
	// KindCandidate is a label a classifier can choose. It is not an agent.
	KindCandidate
)

// Node is one entry of the routing roster.
type Node struct {
	Name   string
	Kind   NodeKind
	Domain string

	// Label is the value a handler or classifier places in its ROUTED_TO marker.
	Label string

	// Keywords and Profile describe what the node owns. They are matched
	// against the query by offline models.
	Keywords []string
	Profile  string

	Children []string
}

// Topology is a built agent tree for one architecture.
type Topology struct {
	Architecture Architecture
	Root         agent.Agent
	Nodes        map[string]Node
}

// Node returns the roster entry for name.
func (t *Topology) Node(name string) (Node, bool) {
	n, ok := t.Nodes[name]
	return n, ok
}

// AgentCount is the number of ADK agents in the topology.
func (t *Topology) AgentCount() int {
	count := 0
	for _, n := range t.Nodes {
		if n.Kind != KindCandidate {
			count++
		}
	}
	return count
}

// Build creates the agent topology for arch. Every agent uses llm.
func Build(arch Architecture, llm model.LLM, cat *catalog.Catalog) (*Topology, error) {
	if llm == nil {
		return nil, fmt.Errorf("build %s topology: model is nil", arch)
	}
	if cat == nil || len(cat.Domains) == 0 {
		return nil, fmt.Errorf("build %s topology: catalog has no domains", arch)
	}

	t := &Topology{
		Architecture: arch,
		Nodes:        make(map[string]Node),
	}

	var err error
	switch arch {
	case Centralized:
		t.Root, err = buildCentralized(t, llm, cat)
	case Distributed:
		t.Root, err = buildDistributed(t, llm, cat)
	case Direct:
		t.Root, err = buildDirect(t, llm, cat)
	default:
		err = fmt.Errorf("unsupported architecture %s", arch)
	}
	if err != nil {
		return nil, fmt.Errorf("build %s topology: %w", arch, err)
	}
	return t, nil
}

func buildCentralized(t *Topology, llm model.LLM, cat *catalog.Catalog) (agent.Agent, error) {
	hinted := hintPhrases(cat)

	subAgents := make([]agent.Agent, 0, len(cat.Domains))
	children := make([]string, 0, len(cat.Domains))
	for _, d := range cat.Domains {
		name := catalog.CentralAgentName(d.Name)
		profile := domainProfile(d)

		a, err := llmagent.New(llmagent.Config{
			Name:        name,
			Description: profile,
			Model:       llm,
			Instruction: centralDomainPrompt(d),
		})
		if err != nil {
			return nil, fmt.Errorf("create agent %s: %w", name, err)
		}
		subAgents = append(subAgents, a)
		children = append(children, name)

		t.Nodes[name] = Node{
			Name:     name,
			Kind:     KindHandler,
			Domain:   d.Name,
			Label:    name,
			Keywords: append(append([]string{}, d.Keywords...), hinted[d.Name]...),
			Profile:  profile,
		}
	}

	root, err := llmagent.New(llmagent.Config{
		Name:            CentralCoordinatorName,
		Description:     "Routes every query to exactly one domain agent.",
		Model:           llm,
		Instruction:     centralCoordinatorPrompt(cat),
		SubAgents:       subAgents,
		IncludeContents: llmagent.IncludeContentsDefault,
	})
	if err != nil {
		return nil, fmt.Errorf("create agent %s: %w", CentralCoordinatorName, err)
	}
	t.Nodes[CentralCoordinatorName] = Node{
		Name:     CentralCoordinatorName,
		Kind:     KindRouter,
		Children: children,
	}
	return root, nil
}

func buildDistributed(t *Topology, llm model.LLM, cat *catalog.Catalog) (agent.Agent, error) {
	domainAgents := make([]agent.Agent, 0, len(cat.Domains))
	children := make([]string, 0, len(cat.Domains))

	for _, d := range cat.Domains {
		subAgents := make([]agent.Agent, 0, len(d.SubAgents))
		subNames := make([]string, 0, len(d.SubAgents))
		for _, s := range d.SubAgents {
			name := catalog.SubAgentName(d.Name, s.Name)
			a, err := llmagent.New(llmagent.Config{
				Name:        name,
				Description: fmt.Sprintf("%s: %s", s.Name, s.Description),
				Model:       llm,
				Instruction: subAgentPrompt(d, s),
			})
			if err != nil {
				return nil, fmt.Errorf("create agent %s: %w", name, err)
			}
			subAgents = append(subAgents, a)
			subNames = append(subNames, name)

			t.Nodes[name] = Node{
				Name:     name,
				Kind:     KindHandler,
				Domain:   d.Name,
				Label:    name,
				Keywords: []string{s.Name},
				Profile:  s.Description,
			}
		}

		name := catalog.DomainAgentName(d.Name)
		cfg := llmagent.Config{
			Name:        name,
			Description: fmt.Sprintf("%s: %s", d.Name, d.Description),
			Model:       llm,
			Instruction: distributedDomainPrompt(d),
		}
		node := Node{
			Name:     name,
			Domain:   d.Name,
			Keywords: d.Keywords,
			Profile:  d.Description + " " + joinExamples(d),
		}
		if len(subAgents) > 0 {
			cfg.SubAgents = subAgents
			cfg.IncludeContents = llmagent.IncludeContentsDefault
			node.Kind = KindRouter
			node.Children = subNames
		} else {
			node.Kind = KindHandler
			node.Label = d.Name
		}

		a, err := llmagent.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("create agent %s: %w", name, err)
		}
		domainAgents = append(domainAgents, a)
		children = append(children, name)
		t.Nodes[name] = node
	}

	root, err := llmagent.New(llmagent.Config{
		Name:            DistributedCoordinatorName,
		Description:     "Routes every query to one domain agent, which routes to its sub-agents.",
		Model:           llm,
		Instruction:     distributedCoordinatorPrompt(cat),
		SubAgents:       domainAgents,
		IncludeContents: llmagent.IncludeContentsDefault,
	})
	if err != nil {
		return nil, fmt.Errorf("create agent %s: %w", DistributedCoordinatorName, err)
	}
	t.Nodes[DistributedCoordinatorName] = Node{
		Name:     DistributedCoordinatorName,
		Kind:     KindRouter,
		Children: children,
	}
	return root, nil
}

func buildDirect(t *Topology, llm model.LLM, cat *catalog.Catalog) (agent.Agent, error) {
	hinted := hintPhrases(cat)

	children := make([]string, 0, len(cat.Domains))
	for _, d := range cat.Domains {
		name := candidateName(d.Name)
		children = append(children, name)
		t.Nodes[name] = Node{
			Name:     name,
			Kind:     KindCandidate,
			Domain:   d.Name,
			Label:    d.Name,
			Keywords: append(append([]string{}, d.Keywords...), hinted[d.Name]...),
			Profile:  d.Description + " " + joinExamples(d),
		}
	}

	root, err := llmagent.New(llmagent.Config{
		Name:        DirectRouterName,
		Description: "Names the domain label of a query in a single model call.",
		Model:       llm,
		Instruction: directRouterPrompt(cat),
	})
	if err != nil {
		return nil, fmt.Errorf("create agent %s: %w", DirectRouterName, err)
	}
	t.Nodes[DirectRouterName] = Node{
		Name:     DirectRouterName,
		Kind:     KindClassifier,
		Children: children,
	}
	return root, nil
}

func candidateName(domain string) string {
	return "label:" + domain
}

func hintPhrases(cat *catalog.Catalog) map[string][]string {
	out := make(map[string][]string, len(cat.Hints))
	for _, h := range cat.Hints {
		out[h.Domain] = append(out[h.Domain], h.Phrases...)
	}
	return out
}

func joinExamples(d catalog.Domain) string {
	return strings.Join(d.Examples, " ")
}
