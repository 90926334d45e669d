package vo

import (
	"encoding/json"
	"strings"
)

// UntitledPage is used when no title property yields text.
const UntitledPage = "Untitled"

// PageRef is a page identifier in canonical form: lower case, separators stripped.
type PageRef string

// NewPageRef normalizes a raw page identifier. Identifiers that differ only in
// hyphens or letter case map to the same PageRef.
func NewPageRef(raw string) PageRef {
	return PageRef(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "-", "")))
}

type Page struct {
	ID    string `json:"id" yaml:"id"`       // Opaque store identifier
	Title string `json:"title" yaml:"title"` // Page title, "Untitled" when missing
	URL   string `json:"url" yaml:"url"`     // Public store URL
}

// Ref returns the normalized form of the page id.
func (p Page) Ref() PageRef {
	return NewPageRef(p.ID)
}

type GraphEntry struct {
	Page      `yaml:",inline"`
	Links     []string `json:"links" yaml:"links"`         // Ids of pages this page references
	Backlinks []string `json:"backlinks" yaml:"backlinks"` // Ids of pages referencing this page
}

type Stats struct {
	TotalPages     int `json:"totalPages" yaml:"totalPages"`
	TotalLinks     int `json:"totalLinks" yaml:"totalLinks"`
	TotalBacklinks int `json:"totalBacklinks" yaml:"totalBacklinks"`
	FailedPages    int `json:"failedPages" yaml:"failedPages"` // Pages whose content fetch failed
}

type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// GraphResponse is the serialized form of a Graph.
type GraphResponse struct {
	Results []GraphEntry `json:"results" yaml:"results"`
	Stats   Stats        `json:"stats" yaml:"stats"`
}

// Graph maps page ids to their links and backlinks. Entries keep catalog order.
type Graph struct {
	entries map[string]*GraphEntry
	order   []string
	Stats   Stats
}

// NewGraph assembles a graph from the catalog and both adjacency directions.
// Pages missing from links or backlinks get empty, non-nil lists.
func NewGraph(pages []Page, links, backlinks map[string][]string) *Graph {
	g := &Graph{
		entries: make(map[string]*GraphEntry, len(pages)),
		order:   make([]string, 0, len(pages)),
	}
	for _, page := range pages {
		if _, exists := g.entries[page.ID]; exists {
			continue
		}
		entry := &GraphEntry{
			Page:      page,
			Links:     append([]string{}, links[page.ID]...),
			Backlinks: append([]string{}, backlinks[page.ID]...),
		}
		g.entries[page.ID] = entry
		g.order = append(g.order, page.ID)
		g.Stats.TotalLinks += len(entry.Links)
		g.Stats.TotalBacklinks += len(entry.Backlinks)
	}
	g.Stats.TotalPages = len(g.order)
	return g
}

// Get returns the entry for a page id.
func (g *Graph) Get(id string) (*GraphEntry, bool) {
	entry, ok := g.entries[id]
	return entry, ok
}

func (g *Graph) Len() int {
	return len(g.order)
}

// IDs returns the page ids in catalog order.
func (g *Graph) IDs() []string {
	return append([]string{}, g.order...)
}

// Results returns copies of all entries in catalog order.
func (g *Graph) Results() []GraphEntry {
	results := make([]GraphEntry, 0, len(g.order))
	for _, id := range g.order {
		results = append(results, *g.entries[id])
	}
	return results
}

// Edges returns one edge per outgoing link.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, id := range g.order {
		for _, target := range g.entries[id].Links {
			edges = append(edges, Edge{Source: id, Target: target})
		}
	}
	return edges
}

// Filter returns a new graph with only the entries keep accepts. Links and
// backlinks pointing at dropped entries are removed.
func (g *Graph) Filter(keep func(GraphEntry) bool) *Graph {
	var pages []Page
	kept := map[string]bool{}
	for _, id := range g.order {
		if keep(*g.entries[id]) {
			pages = append(pages, g.entries[id].Page)
			kept[id] = true
		}
	}
	links := map[string][]string{}
	backlinks := map[string][]string{}
	for id := range kept {
		links[id] = retain(g.entries[id].Links, kept)
		backlinks[id] = retain(g.entries[id].Backlinks, kept)
	}
	filtered := NewGraph(pages, links, backlinks)
	filtered.Stats.FailedPages = g.Stats.FailedPages
	return filtered
}

func retain(ids []string, kept map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if kept[id] {
			out = append(out, id)
		}
	}
	return out
}

func (g *Graph) Response() GraphResponse {
	return GraphResponse{
		Results: g.Results(),
		Stats:   g.Stats,
	}
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Response())
}
