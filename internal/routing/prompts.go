package routing

import (
	"fmt"
	"strings"

	"github.com/moolen/routebench/internal/catalog"
)

// nodeMarker prefixes the line naming the node an instruction belongs to.
// Offline models read it to find their place in the topology.
const nodeMarker = "Routing node:"

// Instructions must not contain curly braces: ADK treats {name} as a session
// state placeholder.

const centralCoordinatorRules = `**CRITICAL RULES:**
1. You MUST ALWAYS delegate to a domain agent - never handle the query yourself
2. Read ALL available agents before deciding
3. When in doubt, choose the closest match rather than not routing`

const centralDecisionProcess = `**DECISION PROCESS:**
1. Identify the main topic and keywords in the user's query
2. Match against agent descriptions and keywords
3. Pick the BEST matching agent
4. DELEGATE immediately`

func withNode(name, body string) string {
	return strings.TrimRight(body, "\n") + "\n\n" + nodeMarker + " " + name
}

func centralCoordinatorPrompt(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("You are the central routing coordinator. Your ONLY job is to route queries to the appropriate domain agent.\n\n")
	b.WriteString(centralCoordinatorRules)
	b.WriteString("\n\n**Available Domain Agents:**\n")
	for _, d := range cat.Domains {
		fmt.Fprintf(&b, "- **%s**: %s\n", d.Name, truncateRunes(d.Description, 80))
	}
	b.WriteString("\n")
	b.WriteString(centralDecisionProcess)
	b.WriteString("\n")
	if hints := hintLines(cat, catalog.CentralAgentName); hints != "" {
		b.WriteString("\n**ROUTING HINTS:**\n")
		b.WriteString(hints)
	}
	b.WriteString("\nNow route the query to the appropriate agent and DELEGATE.")
	return withNode(CentralCoordinatorName, b.String())
}

func centralDomainPrompt(d catalog.Domain) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s agent.\n\n", catalog.Title(d.Name))
	b.WriteString(domainProfile(d))
	fmt.Fprintf(&b, "\n\nAcknowledge you are handling this request as the %s agent.\n", d.Name)
	fmt.Fprintf(&b, "Start your response with: [ROUTED_TO: %s]", catalog.CentralAgentName(d.Name))
	return withNode(catalog.CentralAgentName(d.Name), b.String())
}

func distributedCoordinatorPrompt(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("You are the root coordinator for distributed routing.\n\n")
	b.WriteString("Route user queries to the appropriate domain agent.\n\n")
	fmt.Fprintf(&b, "Available domain agents (%d total):\n", len(cat.Domains))
	for _, d := range cat.Domains {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
	}
	b.WriteString("\nIMPORTANT: Analyze the query and route to the MOST appropriate domain agent.\n")
	b.WriteString("Be decisive - pick ONE domain and delegate immediately.")
	return withNode(DistributedCoordinatorName, b.String())
}

func distributedDomainPrompt(d catalog.Domain) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s domain agent.\n\n", catalog.Title(d.Name))
	fmt.Fprintf(&b, "Your description: %s\n", d.Description)
	fmt.Fprintf(&b, "Your keywords: %s\n\n", strings.Join(d.Keywords, ", "))

	if len(d.SubAgents) == 0 {
		b.WriteString("Handle this request directly.\n")
		fmt.Fprintf(&b, "Start your response with: [ROUTED_TO: %s]", d.Name)
		return withNode(catalog.DomainAgentName(d.Name), b.String())
	}

	b.WriteString("You route queries to your specialized sub-agents:\n")
	for _, s := range d.SubAgents {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Description)
	}
	b.WriteString("\nRoute to the most appropriate sub-agent and delegate immediately.")
	return withNode(catalog.DomainAgentName(d.Name), b.String())
}

func subAgentPrompt(d catalog.Domain, s catalog.SubAgent) string {
	name := catalog.SubAgentName(d.Name, s.Name)
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s sub-agent within the %s domain.\n\n", catalog.Title(s.Name), d.Name)
	fmt.Fprintf(&b, "Your description: %s\n\n", s.Description)
	fmt.Fprintf(&b, "Acknowledge you are the %s/%s sub-agent handling this request.\n", d.Name, s.Name)
	fmt.Fprintf(&b, "Start your response with: [ROUTED_TO: %s]\n", name)
	b.WriteString("Keep your response brief.")
	return withNode(name, b.String())
}

func directRouterPrompt(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("You are a query classifier. Decide which business domain owns the user's query.\n\n")
	b.WriteString("Domains:\n")
	for _, d := range cat.Domains {
		fmt.Fprintf(&b, "- %s: %s Keywords: %s\n", d.Name, d.Description, strings.Join(d.Keywords, ", "))
	}
	if hints := hintLines(cat, func(name string) string { return name }); hints != "" {
		b.WriteString("\nRouting hints:\n")
		b.WriteString(hints)
	}
	b.WriteString("\nReply with exactly one line: [ROUTED_TO: <domain>] where <domain> is one of the names above.\n")
	b.WriteString("Do not add anything else.")
	return withNode(DirectRouterName, b.String())
}

// domainProfile is the description block shared by a domain agent's
// instruction and its ADK description.
func domainProfile(d catalog.Domain) string {
	var b strings.Builder
	b.WriteString(d.Description)
	if d.Note != "" {
		b.WriteString(" NOTE: ")
		b.WriteString(d.Note)
	}
	fmt.Fprintf(&b, "\n\nKeywords: %s", strings.Join(d.Keywords, ", "))
	if len(d.Examples) > 0 {
		quoted := make([]string, 0, 3)
		for i, e := range d.Examples {
			if i == 3 {
				break
			}
			quoted = append(quoted, fmt.Sprintf("%q", e))
		}
		fmt.Fprintf(&b, "\n  Examples: %s", strings.Join(quoted, ", "))
	}
	return b.String()
}

// hintLines renders routing hints plus ownership notes, naming targets with target.
func hintLines(cat *catalog.Catalog, target func(domain string) string) string {
	var b strings.Builder
	for _, h := range cat.Hints {
		quoted := make([]string, len(h.Phrases))
		for i, p := range h.Phrases {
			quoted[i] = fmt.Sprintf("%q", p)
		}
		fmt.Fprintf(&b, "- %s -> %s\n", strings.Join(quoted, ", "), target(h.Domain))
	}
	for _, d := range cat.Domains {
		if d.Note != "" {
			fmt.Fprintf(&b, "- %s: %s\n", target(d.Name), d.Note)
		}
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
