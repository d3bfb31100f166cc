package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Loads(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Len(t, c.Domains, 37)
	assert.Len(t, c.Queries, 59)
	assert.NotEmpty(t, c.Hints)

	for _, d := range c.Domains {
		assert.NotEmpty(t, d.Keywords, "domain %s has no keywords", d.Name)
		assert.Len(t, d.SubAgents, 4, "domain %s", d.Name)
	}
}

func TestDefault_FirstTwentyQueriesCoverFiveDomains(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	got := LabelCounts(c.Select(20))
	want := map[string]int{
		"travel":           4,
		"finance":          4,
		"hr":               4,
		"it_support":       4,
		"customer_service": 4,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("label counts mismatch (-want +got):\n%s", diff)
	}
}

func TestSelect_Clamps(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Len(t, c.Select(0), 1)
	assert.Len(t, c.Select(-3), 1)
	assert.Len(t, c.Select(5), 5)
	assert.Len(t, c.Select(1000), len(c.Queries))

	// Select must return a copy.
	sel := c.Select(1)
	sel[0].Text = "changed"
	assert.NotEqual(t, "changed", c.Queries[0].Text)
}

func TestLookup(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	d, err := c.Lookup("it_support")
	require.NoError(t, err)
	assert.Equal(t, "it_support", d.Name)
	assert.Contains(t, d.Keywords, "vpn")

	_, err = c.Lookup("astrology")
	assert.True(t, errors.Is(err, ErrUnknownDomain))
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	c := &Catalog{
		Domains: []Domain{
			{Name: "travel", SubAgents: []SubAgent{{Name: "flights"}, {Name: "flights"}}},
			{Name: "travel"},
			{Name: ""},
		},
		Queries: []Query{
			{Text: "Book a flight", Expected: "travel"},
			{Text: "", Expected: "travel"},
			{Text: "Pay my bill", Expected: ""},
			{Text: "Horoscope", Expected: "astrology"},
		},
	}

	err := c.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `duplicate sub-agent "flights"`)
	assert.Contains(t, msg, `domain "travel": duplicate name`)
	assert.Contains(t, msg, "domain 2: name must not be empty")
	assert.Contains(t, msg, "query 2: text must not be empty")
	assert.Contains(t, msg, "query 3: expected domain must not be empty")
	assert.True(t, errors.Is(err, ErrUnknownDomain))
}

func TestValidate_EmptyCatalog(t *testing.T) {
	err := (&Catalog{}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no domains")
}

func TestLoad_File(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `domains:
  - name: travel
    description: Travel requests
    keywords: [flight, hotel]
    examples: ["Book a flight"]
    sub_agents:
      - name: flights
        description: Flight bookings
  - name: finance
    description: Money matters
    keywords: [bank]
hints:
  - phrases: [expense]
    domain: finance
queries:
  - text: Book a flight to Oslo
    expected: travel
  - text: Check my bank balance
    expected: finance
`
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	c, err := Load(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"travel", "finance"}, c.Names())
	require.Len(t, c.Domains[0].SubAgents, 1)
	assert.Equal(t, "flights", c.Domains[0].SubAgents[0].Name)
	assert.Equal(t, "finance", c.Hints[0].Domain)
	assert.Len(t, c.Queries, 2)
}

func TestLoad_Invalid(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	content := `domains:
  - name: travel
queries:
  - text: Pay taxes
    expected: tax
`
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	_, err := Load(tmpFile)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownDomain))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAgentNames(t *testing.T) {
	assert.Equal(t, "hr_agent", CentralAgentName("hr"))
	assert.Equal(t, "hr_domain", DomainAgentName("hr"))
	assert.Equal(t, "hr_payroll", SubAgentName("hr", "payroll"))
	assert.Equal(t, "It Support", Title("it_support"))
	assert.Equal(t, "Hr", Title("hr"))
}
