package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"coinharvest/internal/domain"
	"coinharvest/internal/intel"
	"coinharvest/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

type FeedProvider interface {
	FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]provider.ContentItem, error)
}

type IntelRepository interface {
	UpsertItems(ctx context.Context, items []domain.IntelItem) ([]domain.IntelItem, error)
	UpsertItemSymbols(ctx context.Context, itemID int64, symbols []string) error
}

// NewsService ingests RSS feeds into intel_items and tags each stored item
// with the symbols it mentions.
type NewsService struct {
	tracer   trace.Tracer
	feeds    []string
	maxItems int
	provider FeedProvider
	repo     IntelRepository
}

func NewNewsService(tracer trace.Tracer, feedProvider FeedProvider, repo IntelRepository, feeds []string, maxItems int) *NewsService {
	if maxItems <= 0 {
		maxItems = 50
	}
	return &NewsService{
		tracer:   tracer,
		feeds:    feeds,
		maxItems: maxItems,
		provider: feedProvider,
		repo:     repo,
	}
}

// RefreshAll fetches every configured feed and upserts the items. A feed that
// fails is logged and skipped; the pass reports partial success.
func (s *NewsService) RefreshAll(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "news-service.refresh-all")
	defer span.End()

	var fetched []provider.ContentItem
	var firstErr error
	for _, feed := range s.feeds {
		items, err := s.provider.FetchFeed(ctx, feed, s.maxItems)
		if err != nil {
			log.Printf("feed fetch error for %s: %v", feed, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fetched = append(fetched, items...)
	}
	if len(fetched) == 0 {
		return 0, firstErr
	}

	now := time.Now().UTC()
	rows := make([]domain.IntelItem, 0, len(fetched))
	for _, item := range fetched {
		metadata := ""
		if len(item.Metadata) > 0 {
			if raw, err := json.Marshal(item.Metadata); err == nil {
				metadata = string(raw)
			}
		}
		rows = append(rows, domain.IntelItem{
			Source:       item.Source,
			SourceItemID: item.SourceItemID,
			Title:        item.Title,
			URL:          item.URL,
			Excerpt:      item.Excerpt,
			Author:       item.Author,
			PublishedAt:  item.PublishedAt,
			FetchedAt:    now,
			MetadataJSON: metadata,
		})
	}

	stored, err := s.repo.UpsertItems(ctx, rows)
	if err != nil {
		return 0, err
	}

	for _, item := range stored {
		symbols := intel.ExtractSymbolsFromContent(item.Source, item.Title, item.Excerpt)
		if len(symbols) == 0 {
			continue
		}
		if err := s.repo.UpsertItemSymbols(ctx, item.ID, symbols); err != nil {
			log.Printf("symbol tag error for item %d: %v", item.ID, err)
		}
	}

	return len(stored), firstErr
}
