package vo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testGraph() *Graph {
	pages := []Page{
		{ID: "p1", Title: "Intro", URL: "https://www.notion.so/p1"},
		{ID: "p2", Title: "Setup", URL: "https://www.notion.so/p2"},
		{ID: "p3", Title: "Lonely", URL: "https://www.notion.so/p3"},
	}
	return NewGraph(pages,
		map[string][]string{"p1": {"p2"}},
		map[string][]string{"p2": {"p1"}},
	)
}

func TestGraphJSON(t *testing.T) {
	data, err := json.Marshal(testGraph())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"results": [
			{"id": "p1", "title": "Intro", "url": "https://www.notion.so/p1", "links": ["p2"], "backlinks": []},
			{"id": "p2", "title": "Setup", "url": "https://www.notion.so/p2", "links": [], "backlinks": ["p1"]},
			{"id": "p3", "title": "Lonely", "url": "https://www.notion.so/p3", "links": [], "backlinks": []}
		],
		"stats": {"totalPages": 3, "totalLinks": 1, "totalBacklinks": 1, "failedPages": 0}
	}`, string(data))
}

func TestGraphYAML(t *testing.T) {
	data, err := yaml.Marshal(testGraph().Response())
	require.NoError(t, err)

	var decoded GraphResponse
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	require.Len(t, decoded.Results, 3)
	assert.Equal(t, "Intro", decoded.Results[0].Title)
	assert.Equal(t, []string{"p2"}, decoded.Results[0].Links)
	assert.Contains(t, string(data), "title: Intro")
}

func TestGraphFilter(t *testing.T) {
	graph := testGraph()
	graph.Stats.FailedPages = 1

	connected := graph.Filter(func(e GraphEntry) bool {
		return len(e.Links) > 0 || len(e.Backlinks) > 0
	})

	assert.Equal(t, []string{"p1", "p2"}, connected.IDs())
	assert.Equal(t, Stats{TotalPages: 2, TotalLinks: 1, TotalBacklinks: 1, FailedPages: 1}, connected.Stats)

	onlyFirst := graph.Filter(func(e GraphEntry) bool { return e.ID == "p1" })
	p1, ok := onlyFirst.Get("p1")
	require.True(t, ok)
	assert.Empty(t, p1.Links, "links to dropped pages are removed")
}

func TestGraphIgnoresDuplicatePages(t *testing.T) {
	graph := NewGraph([]Page{{ID: "p1", Title: "First"}, {ID: "p1", Title: "Second"}}, nil, nil)
	assert.Equal(t, 1, graph.Len())
	p1, _ := graph.Get("p1")
	assert.Equal(t, "First", p1.Title)
	assert.Nil(t, graph.Edges())
}

func TestNewPageRef(t *testing.T) {
	assert.Equal(t,
		NewPageRef("abc12345abcd4abc8abcabc123456789"),
		NewPageRef("abc12345-abcd-4abc-8abc-abc123456789"),
	)
	assert.Equal(t, PageRef("p2"), Page{ID: "P2"}.Ref())
}
