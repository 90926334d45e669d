package service

import (
	"context"
	"time"

	"github.com/foomo/linkgraph-mcp/notion"
	"github.com/foomo/linkgraph-mcp/service/vo"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/foomo/linkgraph-mcp/service")

type Service interface {
	ListPages(ctx context.Context, creds notion.Credentials, databaseID string) ([]vo.Page, error)
	BuildGraph(ctx context.Context, creds notion.Credentials, pages []vo.Page, opts Options) (*vo.Graph, error)
	ComputeLinkGraph(ctx context.Context, creds notion.Credentials, databaseID string, opts Options) (*vo.Graph, error)
}

// PageStore is the remote content store. *notion.Client implements it.
type PageStore interface {
	QueryDatabase(ctx context.Context, creds notion.Credentials, databaseID string) ([]notion.Page, error)
	ListBlockChildren(ctx context.Context, creds notion.Credentials, blockID string) ([]notion.Block, error)
}

type Settings struct {
	// Concurrency caps simultaneous page content fetches; <= 0 means unbounded.
	Concurrency int
	// Timeout bounds a whole graph computation; 0 disables it.
	Timeout time.Duration
	// Registerer receives the service metrics; nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// Options tune a single graph computation.
type Options struct {
	// ConnectedOnly drops pages that have neither links nor backlinks.
	ConnectedOnly bool
	// OnPage is called once per page after its links are resolved. Calls are
	// serialized but arrive in completion order.
	OnPage func(PageResult)
}

// PageResult reports the outcome for one page of a graph computation.
type PageResult struct {
	Page  vo.Page  `json:"page"`
	Links []string `json:"links"`
	Err   error    `json:"-"`
}

type service struct {
	store    PageStore
	settings Settings
	logger   *zap.Logger
	metrics  *metrics
}

func NewService(
	settings Settings,
	store PageStore,
	logger *zap.Logger,
) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		store:    store,
		settings: settings,
		logger:   logger,
		metrics:  newMetrics(settings.Registerer),
	}
}

func (s *service) ListPages(ctx context.Context, creds notion.Credentials, databaseID string) ([]vo.Page, error) {
	pages, err := LoadPages(ctx, s.store, creds, databaseID)
	if err != nil {
		s.logger.Error("failed to load pages", zap.String("databaseID", databaseID), zap.Error(err))
		return nil, err
	}
	return pages, nil
}

// ComputeLinkGraph loads the catalog of a database and builds its link graph.
// It fails only when the catalog cannot be loaded or ctx ends; individual page
// failures leave that page without outgoing links.
func (s *service) ComputeLinkGraph(ctx context.Context, creds notion.Credentials, databaseID string, opts Options) (*vo.Graph, error) {
	start := time.Now()
	if s.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.Timeout)
		defer cancel()
	}
	ctx, span := tracer.Start(ctx, "ComputeLinkGraph", trace.WithAttributes(attribute.String("database.id", databaseID)))
	defer span.End()

	graph, err := s.computeLinkGraph(ctx, creds, databaseID, opts)
	s.metrics.buildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.graphBuilds.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "link graph computation failed")
		return nil, err
	}
	s.metrics.graphBuilds.WithLabelValues("ok").Inc()
	span.SetAttributes(
		attribute.Int("graph.pages", graph.Stats.TotalPages),
		attribute.Int("graph.links", graph.Stats.TotalLinks),
		attribute.Int("graph.failed_pages", graph.Stats.FailedPages),
	)
	s.logger.Info("link graph computed",
		zap.String("databaseID", databaseID),
		zap.Int("totalPages", graph.Stats.TotalPages),
		zap.Int("totalLinks", graph.Stats.TotalLinks),
		zap.Int("totalBacklinks", graph.Stats.TotalBacklinks),
		zap.Int("failedPages", graph.Stats.FailedPages),
		zap.Duration("duration", time.Since(start)),
	)
	return graph, nil
}

func (s *service) computeLinkGraph(ctx context.Context, creds notion.Credentials, databaseID string, opts Options) (*vo.Graph, error) {
	pages, err := s.ListPages(ctx, creds, databaseID)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded pages", zap.String("databaseID", databaseID), zap.Int("count", len(pages)))
	return s.BuildGraph(ctx, creds, pages, opts)
}
