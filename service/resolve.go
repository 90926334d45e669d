package service

import (
	"github.com/foomo/linkgraph-mcp/links"
	"github.com/foomo/linkgraph-mcp/notion"
	"github.com/foomo/linkgraph-mcp/service/vo"
)

// KnownPages indexes catalog page ids by their normalized form.
type KnownPages map[vo.PageRef]string

func NewKnownPages(pages []vo.Page) KnownPages {
	known := make(KnownPages, len(pages))
	for _, page := range pages {
		if _, exists := known[page.Ref()]; !exists {
			known[page.Ref()] = page.ID
		}
	}
	return known
}

// ResolveLinks scans each block of a page, normalizes and deduplicates the
// references and keeps the ones that point into the catalog. The result holds
// catalog page ids in first-seen order.
func ResolveLinks(blocks []notion.Block, known KnownPages) []string {
	resolved := []string{}
	seen := map[vo.PageRef]bool{}
	for _, block := range blocks {
		for _, raw := range links.Scan(block) {
			ref := links.Normalize(raw)
			if seen[ref] {
				continue
			}
			seen[ref] = true
			if id, ok := known[ref]; ok {
				resolved = append(resolved, id)
			}
		}
	}
	return resolved
}
