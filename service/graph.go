package service

import (
	"context"
	"sync"

	"github.com/foomo/linkgraph-mcp/notion"
	"github.com/foomo/linkgraph-mcp/service/vo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FetchBlocks lists the direct children of a page. A failed listing is logged,
// counted and returned as a *PageContentFetchError with no blocks.
func (s *service) FetchBlocks(ctx context.Context, creds notion.Credentials, pageID string) ([]notion.Block, error) {
	ctx, span := tracer.Start(ctx, "FetchBlocks", trace.WithAttributes(attribute.String("page.id", pageID)))
	defer span.End()

	s.metrics.pagesFetched.Inc()
	blocks, err := s.store.ListBlockChildren(ctx, creds, pageID)
	if err != nil {
		fetchErr := &PageContentFetchError{PageID: pageID, Err: err}
		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, "page content fetch failed")
		if ctx.Err() == nil {
			s.metrics.fetchFailures.Inc()
			s.logger.Warn("failed to fetch page content", zap.String("pageID", pageID), zap.Error(err))
		}
		return nil, fetchErr
	}
	span.SetAttributes(attribute.Int("blocks.count", len(blocks)))
	return blocks, nil
}

// BuildGraph fetches and resolves every page concurrently, then inverts the
// links into backlinks. It returns an error only when ctx ends before all
// pages are resolved.
func (s *service) BuildGraph(ctx context.Context, creds notion.Credentials, pages []vo.Page, opts Options) (*vo.Graph, error) {
	known := NewKnownPages(pages)
	titles := make(map[string]string, len(pages))
	for _, page := range pages {
		titles[page.ID] = page.Title
	}
	resolved := make([][]string, len(pages))
	failed := make([]bool, len(pages))

	var onPageMu sync.Mutex
	report := func(result PageResult) {
		if opts.OnPage == nil {
			return
		}
		onPageMu.Lock()
		defer onPageMu.Unlock()
		opts.OnPage(result)
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.settings.Concurrency > 0 {
		g.SetLimit(s.settings.Concurrency)
	}
	for i, page := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			blocks, err := s.FetchBlocks(gctx, creds, page.ID)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed[i] = true
			}
			resolved[i] = ResolveLinks(blocks, known)
			s.logResolved(page, resolved[i], titles)
			report(PageResult{Page: page, Links: resolved[i], Err: err})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order := make([]string, len(pages))
	outgoing := make(map[string][]string, len(pages))
	failedPages := 0
	for i, page := range pages {
		order[i] = page.ID
		if _, exists := outgoing[page.ID]; !exists {
			outgoing[page.ID] = resolved[i]
		}
		if failed[i] {
			failedPages++
		}
	}

	graph := vo.NewGraph(pages, outgoing, Invert(order, outgoing))
	graph.Stats.FailedPages = failedPages
	if opts.ConnectedOnly {
		graph = graph.Filter(func(entry vo.GraphEntry) bool {
			return len(entry.Links) > 0 || len(entry.Backlinks) > 0
		})
	}
	return graph, nil
}

// Invert transposes the links relation. Sources are visited in order, so each
// backlink list follows catalog order.
func Invert(order []string, links map[string][]string) map[string][]string {
	backlinks := make(map[string][]string, len(links))
	visited := make(map[string]bool, len(order))
	for _, source := range order {
		if visited[source] {
			continue
		}
		visited[source] = true
		for _, target := range links[source] {
			backlinks[target] = append(backlinks[target], source)
		}
	}
	return backlinks
}

func (s *service) logResolved(page vo.Page, ids []string, titles map[string]string) {
	if ce := s.logger.Check(zap.DebugLevel, "resolved page links"); ce != nil {
		linkTitles := make([]string, 0, len(ids))
		for _, id := range ids {
			linkTitles = append(linkTitles, titles[id])
		}
		ce.Write(
			zap.String("pageID", page.ID),
			zap.String("title", page.Title),
			zap.Int("links", len(ids)),
			zap.Strings("linkTitles", linkTitles),
		)
	}
}
