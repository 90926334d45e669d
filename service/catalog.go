package service

import (
	"context"

	"github.com/foomo/linkgraph-mcp/notion"
	"github.com/foomo/linkgraph-mcp/service/vo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LoadPages lists the pages of a database. Any store failure is returned as a
// *CatalogError.
func LoadPages(ctx context.Context, store PageStore, creds notion.Credentials, databaseID string) ([]vo.Page, error) {
	ctx, span := tracer.Start(ctx, "LoadPages", trace.WithAttributes(attribute.String("database.id", databaseID)))
	defer span.End()

	results, err := store.QueryDatabase(ctx, creds, databaseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page listing failed")
		return nil, &CatalogError{DatabaseID: databaseID, Err: err}
	}

	pages := make([]vo.Page, 0, len(results))
	for _, result := range results {
		pages = append(pages, vo.Page{
			ID:    result.ID,
			Title: PageTitle(result.Properties),
			URL:   result.URL,
		})
	}
	span.SetAttributes(attribute.Int("pages.count", len(pages)))
	return pages, nil
}

// PageTitle returns the text of the first title property with content, in the
// order the store sent the properties.
func PageTitle(props notion.Properties) string {
	for _, prop := range props {
		if prop.Type != "title" || len(prop.Title) == 0 {
			continue
		}
		if title := spanText(prop.Title[0]); title != "" {
			return title
		}
	}
	return vo.UntitledPage
}

func spanText(span notion.RichText) string {
	if span.Text != nil && span.Text.Content != "" {
		return span.Text.Content
	}
	return span.PlainText
}
