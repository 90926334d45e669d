// Package links finds page references in Notion content blocks.
package links

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/foomo/linkgraph-mcp/notion"
	"github.com/foomo/linkgraph-mcp/service/vo"
)

var (
	storeHostPattern = regexp.MustCompile(`(?i)(^|\.)notion\.(so|site)$`)
	pageIDPattern    = regexp.MustCompile(`(?i)[0-9a-f]{8}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{12}`)
)

// Scan returns the raw page identifiers referenced by a single block, without
// descending into its children. Each identifier appears once.
func Scan(block notion.Block) []string {
	var refs []string
	seen := map[string]bool{}
	add := func(ref string) {
		if ref == "" || seen[ref] {
			return
		}
		seen[ref] = true
		refs = append(refs, ref)
	}

	switch content := block.Content.(type) {
	case *notion.LinkPreview:
		if id, ok := ExtractFromURL(content.URL); ok {
			add(id)
		}
	case *notion.LinkToPage:
		add(content.PageID)
	case *notion.RichTextContent:
		for _, span := range content.RichText {
			add(scanSpan(span))
		}
	case *notion.UnsupportedContent, nil:
	}
	return refs
}

func scanSpan(span notion.RichText) string {
	switch span.Type {
	case "mention":
		if span.Mention != nil && span.Mention.Type == "page" && span.Mention.Page != nil {
			return span.Mention.Page.ID
		}
	case "text":
		if span.Text != nil && span.Text.Link != nil {
			if id, ok := ExtractFromURL(span.Text.Link.URL); ok {
				return id
			}
			// internal links carry a relative url; href holds the absolute one
			if id, ok := ExtractFromURL(span.Href); ok {
				return id
			}
		}
	}
	return ""
}

// ExtractFromURL returns the page id embedded in a store URL such as
// https://www.notion.so/workspace/Title-0123456789abcdef0123456789abcdef.
// The last id in the path wins; query and fragment are ignored.
func ExtractFromURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !storeHostPattern.MatchString(u.Hostname()) {
		return "", false
	}
	matches := pageIDPattern.FindAllString(u.Path, -1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1], true
}

// Normalize maps a raw identifier to its canonical PageRef.
func Normalize(raw string) vo.PageRef {
	return vo.NewPageRef(raw)
}
