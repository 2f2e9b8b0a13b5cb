package repository

import (
	"context"
	"time"

	"coinharvest/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type IntelRepository struct {
	pool   Pool
	tracer trace.Tracer
}

func NewIntelRepository(pool Pool, tracer trace.Tracer) *IntelRepository {
	return &IntelRepository{pool: pool, tracer: tracer}
}

// UpsertItems inserts or refreshes intel items keyed by (source,
// source_item_id). Sentiment columns are COALESCE-guarded: re-ingesting an
// already scored item keeps its score.
func (r *IntelRepository) UpsertItems(ctx context.Context, items []domain.IntelItem) ([]domain.IntelItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	_, span := r.tracer.Start(ctx, "intel-repo.upsert-items")
	defer span.End()

	batch := &pgx.Batch{}
	for _, item := range items {
		metadata := ensureJSON(item.MetadataJSON)
		batch.Queue(`
INSERT INTO intel_items (
    source, source_item_id, title, url, excerpt, author,
    published_at, fetched_at, metadata_json,
    sentiment_score, sentiment_confidence, sentiment_label, sentiment_model, scored_at
) VALUES (
    $1, $2, $3, $4, $5, $6,
    $7, $8, $9,
    $10, $11, $12, $13, $14
)
ON CONFLICT (source, source_item_id) DO UPDATE SET
    title = EXCLUDED.title,
    url = EXCLUDED.url,
    excerpt = EXCLUDED.excerpt,
    author = EXCLUDED.author,
    published_at = EXCLUDED.published_at,
    fetched_at = EXCLUDED.fetched_at,
    metadata_json = EXCLUDED.metadata_json,
    sentiment_score = COALESCE(EXCLUDED.sentiment_score, intel_items.sentiment_score),
    sentiment_confidence = COALESCE(EXCLUDED.sentiment_confidence, intel_items.sentiment_confidence),
    sentiment_label = COALESCE(EXCLUDED.sentiment_label, intel_items.sentiment_label),
    sentiment_model = COALESCE(EXCLUDED.sentiment_model, intel_items.sentiment_model),
    scored_at = COALESCE(EXCLUDED.scored_at, intel_items.scored_at),
    updated_at = NOW()
RETURNING id, source, source_item_id, title, url, excerpt, author,
          published_at, fetched_at, metadata_json,
          sentiment_score, sentiment_confidence, sentiment_label, sentiment_model, scored_at,
          created_at, updated_at, '{}'::text[]`,
			item.Source,
			item.SourceItemID,
			item.Title,
			item.URL,
			item.Excerpt,
			item.Author,
			item.PublishedAt.UTC(),
			nullIfZeroTime(item.FetchedAt),
			metadata,
			nullFloat(item.SentimentScore),
			nullFloat(item.SentimentConfidence),
			nullString(item.SentimentLabel),
			nullString(item.SentimentModel),
			nullTime(item.ScoredAt),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	out := make([]domain.IntelItem, 0, len(items))
	for range items {
		item, err := scanIntelItemRow(br.QueryRow())
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *IntelRepository) UpsertItemSymbols(ctx context.Context, itemID int64, symbols []string) error {
	_, span := r.tracer.Start(ctx, "intel-repo.upsert-item-symbols")
	defer span.End()

	if itemID <= 0 {
		return nil
	}
	unique := normalizeSymbolList(symbols)
	if len(unique) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, symbol := range unique {
		batch.Queue(`
INSERT INTO intel_item_symbols (item_id, symbol)
VALUES ($1, $2)
ON CONFLICT (item_id, symbol) DO NOTHING`, itemID, symbol)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range unique {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *IntelRepository) ListUnscoredItems(ctx context.Context, limit int) ([]domain.IntelItem, error) {
	_, span := r.tracer.Start(ctx, "intel-repo.list-unscored-items")
	defer span.End()

	if limit <= 0 {
		limit = 200
	}

	rows, err := r.pool.Query(ctx, `
SELECT i.id, i.source, i.source_item_id, i.title, i.url, i.excerpt, i.author,
       i.published_at, i.fetched_at, i.metadata_json,
       i.sentiment_score, i.sentiment_confidence, i.sentiment_label, i.sentiment_model, i.scored_at,
       i.created_at, i.updated_at,
       COALESCE(array_agg(ms.symbol) FILTER (WHERE ms.symbol IS NOT NULL), '{}'::text[])
FROM intel_items i
LEFT JOIN intel_item_symbols ms ON ms.item_id = i.id
WHERE i.scored_at IS NULL
GROUP BY i.id
ORDER BY i.published_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.IntelItem, 0, limit)
	for rows.Next() {
		item, err := scanIntelItemRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *IntelRepository) UpdateItemSentiment(
	ctx context.Context,
	itemID int64,
	score float64,
	confidence float64,
	label string,
	model string,
	scoredAt time.Time,
) error {
	_, span := r.tracer.Start(ctx, "intel-repo.update-item-sentiment")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
UPDATE intel_items
SET sentiment_score = $2,
    sentiment_confidence = $3,
    sentiment_label = $4,
    sentiment_model = $5,
    scored_at = $6,
    updated_at = NOW()
WHERE id = $1`, itemID, score, confidence, label, model, scoredAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetHourlyStats aggregates scored items into per-symbol hourly buckets over
// [from, to), bucketed by published_at.
func (r *IntelRepository) GetHourlyStats(ctx context.Context, from, to time.Time) ([]domain.SentimentHourlyStat, error) {
	_, span := r.tracer.Start(ctx, "intel-repo.get-hourly-stats")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT s.symbol,
       date_trunc('hour', i.published_at) AS bucket_time,
       AVG(i.sentiment_score) AS avg_score,
       AVG(i.sentiment_confidence) AS avg_conf,
       COUNT(*)::INT AS n
FROM intel_items i
JOIN intel_item_symbols s ON s.item_id = i.id
WHERE i.scored_at IS NOT NULL
  AND i.published_at >= $1
  AND i.published_at < $2
GROUP BY s.symbol, date_trunc('hour', i.published_at)
ORDER BY s.symbol, bucket_time`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SentimentHourlyStat
	for rows.Next() {
		var st domain.SentimentHourlyStat
		if err := rows.Scan(&st.Symbol, &st.BucketTime, &st.AvgScore, &st.AvgConfidence, &st.ItemCount); err != nil {
			return nil, err
		}
		st.BucketTime = st.BucketTime.UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *IntelRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "intel-repo.delete-older-than")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `DELETE FROM intel_items WHERE published_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanIntelItemRow(s interface{ Scan(dest ...any) error }) (domain.IntelItem, error) {
	var out domain.IntelItem
	var score pgtype.Float8
	var conf pgtype.Float8
	var label pgtype.Text
	var model pgtype.Text
	var scored pgtype.Timestamptz
	var symbols []string

	if err := s.Scan(
		&out.ID,
		&out.Source,
		&out.SourceItemID,
		&out.Title,
		&out.URL,
		&out.Excerpt,
		&out.Author,
		&out.PublishedAt,
		&out.FetchedAt,
		&out.MetadataJSON,
		&score,
		&conf,
		&label,
		&model,
		&scored,
		&out.CreatedAt,
		&out.UpdatedAt,
		&symbols,
	); err != nil {
		return domain.IntelItem{}, err
	}

	out.PublishedAt = out.PublishedAt.UTC()
	out.FetchedAt = out.FetchedAt.UTC()
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	if score.Valid {
		v := score.Float64
		out.SentimentScore = &v
	}
	if conf.Valid {
		v := conf.Float64
		out.SentimentConfidence = &v
	}
	if label.Valid {
		out.SentimentLabel = label.String
	}
	if model.Valid {
		out.SentimentModel = model.String
	}
	if scored.Valid {
		v := scored.Time.UTC()
		out.ScoredAt = &v
	}
	out.Symbols = normalizeSymbolList(symbols)
	return out, nil
}
