package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"unicode"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/moolen/routebench/internal/routing"
)

const nodeMarker = "Routing node:"

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "i": true, "my": true, "me": true,
	"to": true, "for": true, "of": true, "in": true, "on": true, "and": true,
	"or": true, "is": true, "are": true, "do": true, "can": true, "you": true,
	"need": true, "want": true, "with": true, "this": true, "that": true,
	"it": true, "be": true, "how": true, "what": true, "where": true, "when": true,
	"please": true, "help": true, "new": true, "next": true, "our": true,
}

// KeywordLLM is an offline model that routes by keyword overlap.
// It finds the node it serves from the "Routing node:" line of the system
// instruction and answers from the roster of registered topologies.
type KeywordLLM struct {
	mu    sync.RWMutex
	nodes map[string]routing.Node
}

// NewKeywordLLM creates an offline model with an empty roster.
func NewKeywordLLM() *KeywordLLM {
	return &KeywordLLM{nodes: make(map[string]routing.Node)}
}

// Register adds the nodes of t to the roster.
func (k *KeywordLLM) Register(t *routing.Topology) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for name, n := range t.Nodes {
		k.nodes[name] = n
	}
}

// Name returns the model identifier.
func (k *KeywordLLM) Name() string {
	return MockModelName
}

// GenerateContent implements model.LLM.
func (k *KeywordLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}
		resp, err := k.respond(req)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(resp, nil)
	}
}

func (k *KeywordLLM) respond(req *model.LLMRequest) (*model.LLMResponse, error) {
	nodeName := nodeFromInstruction(req)
	if nodeName == "" {
		return nil, fmt.Errorf("keyword model: request carries no %q line", nodeMarker)
	}

	k.mu.RLock()
	node, ok := k.nodes[nodeName]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("keyword model: unknown routing node %q", nodeName)
	}

	query := userQuery(req)

	var part *genai.Part
	switch node.Kind {
	case routing.KindRouter:
		best, err := k.choose(node, query)
		if err != nil {
			return nil, err
		}
		part = &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   "keyword_transfer_" + best.Name,
				Name: "transfer_to_agent",
				Args: map[string]any{"agent_name": best.Name},
			},
		}
	case routing.KindClassifier:
		best, err := k.choose(node, query)
		if err != nil {
			return nil, err
		}
		part = &genai.Part{Text: fmt.Sprintf("[ROUTED_TO: %s]", best.Label)}
	case routing.KindHandler:
		part = &genai.Part{Text: fmt.Sprintf("[ROUTED_TO: %s] The %s agent is handling this request.", node.Label, node.Name)}
	default:
		return nil, fmt.Errorf("keyword model: node %q cannot answer", nodeName)
	}

	promptLen := len(query)
	if req.Config != nil && req.Config.SystemInstruction != nil {
		for _, p := range req.Config.SystemInstruction.Parts {
			if p != nil {
				promptLen += len(p.Text)
			}
		}
	}

	// #nosec G115 -- prompt sizes are bounded by the catalog
	promptTokens, candidateTokens := int32(promptLen/4), int32(len(part.Text)/4+1)

	return &model.LLMResponse{
		Content: &genai.Content{
			Parts: []*genai.Part{part},
			Role:  "model",
		},
		FinishReason: genai.FinishReasonStop,
		TurnComplete: true,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     promptTokens,
			CandidatesTokenCount: candidateTokens,
			TotalTokenCount:      promptTokens + candidateTokens,
		},
	}, nil
}

// choose returns the child of node that best matches query. Ties go to the
// earlier child.
func (k *KeywordLLM) choose(node routing.Node, query string) (routing.Node, error) {
	if len(node.Children) == 0 {
		return routing.Node{}, fmt.Errorf("keyword model: node %q has no children", node.Name)
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	bestScore := -1
	var best routing.Node
	for _, name := range node.Children {
		child, ok := k.nodes[name]
		if !ok {
			return routing.Node{}, fmt.Errorf("keyword model: unknown child %q of %q", name, node.Name)
		}
		if s := Score(query, child); s > bestScore {
			bestScore = s
			best = child
		}
	}
	return best, nil
}

// Score rates how well query matches node. A keyword phrase found in the
// query counts 3, every other query word found in the profile counts 1.
func Score(query string, node routing.Node) int {
	qTokens := tokenize(query)
	qText := " " + strings.Join(qTokens, " ") + " "

	score := 0
	for _, kw := range node.Keywords {
		kwTokens := tokenize(kw)
		if len(kwTokens) == 0 {
			continue
		}
		if len(kwTokens) > 1 {
			if strings.Contains(qText, " "+strings.Join(kwTokens, " ")+" ") {
				score += 3
			}
			continue
		}
		if matchesWord(qTokens, kwTokens[0]) {
			score += 3
		}
	}

	profile := make(map[string]bool)
	for _, t := range tokenize(node.Profile) {
		profile[t] = true
	}
	for _, t := range qTokens {
		if !stopWords[t] && profile[t] {
			score++
		}
	}
	return score
}

func matchesWord(tokens []string, word string) bool {
	for _, t := range tokens {
		if t == word || (len(word) >= 4 && strings.HasPrefix(t, word)) {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func nodeFromInstruction(req *model.LLMRequest) string {
	if req == nil || req.Config == nil || req.Config.SystemInstruction == nil {
		return ""
	}
	for _, p := range req.Config.SystemInstruction.Parts {
		if p == nil {
			continue
		}
		for _, line := range strings.Split(p.Text, "\n") {
			if rest, ok := strings.CutPrefix(strings.TrimSpace(line), nodeMarker); ok {
				return strings.TrimSpace(rest)
			}
		}
	}
	return ""
}

// userQuery returns the first user text in the request, which is the query
// the dispatch started with.
func userQuery(req *model.LLMRequest) string {
	for _, c := range req.Contents {
		if c == nil || c.Role != "user" {
			continue
		}
		for _, p := range c.Parts {
			if p != nil && p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

var _ model.LLM = (*KeywordLLM)(nil)
