package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/moolen/routebench/internal/catalog"
	"github.com/moolen/routebench/internal/routing"
)

func request(node, query string) *model.LLMRequest {
	return &model.LLMRequest{
		Contents: []*genai.Content{
			{Role: "user", Parts: []*genai.Part{{Text: query}}},
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: "You route things.\n\nRouting node: " + node}},
			},
		},
	}
}

func generate(t *testing.T, k *KeywordLLM, req *model.LLMRequest) (*model.LLMResponse, error) {
	t.Helper()
	var (
		got    *model.LLMResponse
		gotErr error
	)
	for resp, err := range k.GenerateContent(context.Background(), req, false) {
		got, gotErr = resp, err
	}
	return got, gotErr
}

func registered(t *testing.T, arch routing.Architecture) *KeywordLLM {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	k := NewKeywordLLM()
	topo, err := routing.Build(arch, k, cat)
	require.NoError(t, err)
	k.Register(topo)
	return k
}

func TestKeywordLLM_RouterTransfers(t *testing.T) {
	k := registered(t, routing.Centralized)

	resp, err := generate(t, k, request(routing.CentralCoordinatorName, "Reset my password"))
	require.NoError(t, err)
	require.Len(t, resp.Content.Parts, 1)

	call := resp.Content.Parts[0].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, "transfer_to_agent", call.Name)
	assert.Equal(t, "it_support_agent", call.Args["agent_name"])
	assert.NotNil(t, resp.UsageMetadata)
}

func TestKeywordLLM_HandlerReportsLabel(t *testing.T) {
	k := registered(t, routing.Distributed)

	resp, err := generate(t, k, request("travel_flights", "I need to book a flight to Tokyo"))
	require.NoError(t, err)
	assert.Contains(t, resp.Content.Parts[0].Text, "[ROUTED_TO: travel_flights]")
}

func TestKeywordLLM_ClassifierNamesDomain(t *testing.T) {
	k := registered(t, routing.Direct)

	tests := map[string]string{
		"When do I get paid?":        "hr",
		"Enroll in training program": "hr",
		"Report an expense":          "finance",
		"My VPN is not working":      "it_support",
		"Plan a vacation to Hawaii":  "travel",
	}
	for query, want := range tests {
		t.Run(query, func(t *testing.T) {
			resp, err := generate(t, k, request(routing.DirectRouterName, query))
			require.NoError(t, err)
			assert.Equal(t, "[ROUTED_TO: "+want+"]", resp.Content.Parts[0].Text)
		})
	}
}

func TestKeywordLLM_Errors(t *testing.T) {
	k := registered(t, routing.Centralized)

	_, err := generate(t, k, &model.LLMRequest{})
	assert.ErrorContains(t, err, "Routing node:")

	_, err = generate(t, k, request("nowhere_agent", "hi"))
	assert.ErrorContains(t, err, "unknown routing node")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, err := range k.GenerateContent(ctx, request(routing.CentralCoordinatorName, "hi"), false) {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestScore(t *testing.T) {
	travel := routing.Node{
		Keywords: []string{"flight", "car rental"},
		Profile:  "Handles flight bookings and hotel reservations",
	}

	assert.Equal(t, 0, Score("check my bank balance", travel))
	assert.Equal(t, 3, Score("book flights", travel), "plural matches the keyword but not the profile")
	assert.Equal(t, 4, Score("I need a flight", travel))
	assert.Equal(t, 3, Score("car rental please", travel))
	assert.Equal(t, 1, Score("hotel", travel))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"what", "s", "the", "price"}, tokenize("What's the price?"))
	assert.Equal(t, []string{"m", "a", "opportunity"}, tokenize("M&A opportunity"))
	assert.Empty(t, tokenize("  ?! "))
}
