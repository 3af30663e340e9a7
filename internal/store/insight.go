package store

import (
	"context"

	"cognito.app/sentinel/core/db"
	"cognito.app/sentinel/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const insightColumns = `id, raw_content_id, profile_id, summary_text, sentiment_label, sentiment_score,
	identified_entities, topic_classification, crisis_opportunity_flag, crisis_opportunity_score,
	potential_impact_assessment, llm_prompt, llm_response, llm_model, created_at`

type insightStore struct {
	q db.Querier
}

func newInsightStore(q db.Querier) InsightStore {
	return &insightStore{q: q}
}

func (s *insightStore) Create(ctx context.Context, insight *model.Insight) error {
	var embedding *pgvector.Vector
	if len(insight.Embedding) > 0 {
		v := pgvector.NewVector(insight.Embedding)
		embedding = &v
	}

	return mapErr(s.q.QueryRow(ctx, `
		INSERT INTO ai_processed_insights
			(id, raw_content_id, profile_id, summary_text, sentiment_label, sentiment_score,
			 identified_entities, topic_classification, crisis_opportunity_flag, crisis_opportunity_score,
			 potential_impact_assessment, llm_prompt, llm_response, llm_model, vector_embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at`,
		insight.ID, insight.RawContentID, insight.ProfileID, insight.SummaryText,
		string(insight.Sentiment.Label), insight.Sentiment.Score,
		nonNil(insight.IdentifiedEntities), nonNil(insight.TopicClassification),
		string(insight.CrisisOpportunityFlag), insight.CrisisOpportunityScore,
		insight.PotentialImpact, insight.LLMPrompt, insight.LLMResponse, insight.LLMModel, embedding,
	).Scan(&insight.CreatedAt))
}

func (s *insightStore) GetByID(ctx context.Context, id int64) (*model.Insight, error) {
	var (
		embedding *pgvector.Vector
		dest      []any
		insight   model.Insight
		label     string
		flag      string
	)
	dest = append(insightDest(&insight, &label, &flag), &embedding)

	err := s.q.QueryRow(ctx,
		`SELECT `+insightColumns+`, vector_embedding FROM ai_processed_insights WHERE id = $1`, id,
	).Scan(dest...)
	if err != nil {
		return nil, mapErr(err)
	}
	insight.Sentiment.Label = model.SentimentLabel(label)
	insight.CrisisOpportunityFlag = model.Flag(flag)
	if embedding != nil {
		insight.Embedding = embedding.Slice()
	}
	return &insight, nil
}

func (s *insightStore) ListByProfile(ctx context.Context, profileID int64, filter InsightFilter) ([]model.Insight, error) {
	var flag *string
	if filter.Flag != nil {
		f := string(*filter.Flag)
		flag = &f
	}

	rows, err := s.q.Query(ctx, `
		SELECT `+insightColumns+` FROM ai_processed_insights
		WHERE profile_id = $1 AND ($2::text IS NULL OR crisis_opportunity_flag = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		profileID, flag, limitOrDefault(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var insights []model.Insight
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		insights = append(insights, *insight)
	}
	return insights, rows.Err()
}

func (s *insightStore) Similar(ctx context.Context, profileID int64, embedding []float32, excludeID int64, limit int) ([]model.SimilarInsight, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+insightColumns+`, vector_embedding <=> $2 AS distance
		FROM ai_processed_insights
		WHERE profile_id = $1 AND id <> $3 AND vector_embedding IS NOT NULL
		ORDER BY vector_embedding <=> $2
		LIMIT $4`,
		profileID, pgvector.NewVector(embedding), excludeID, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.SimilarInsight
	for rows.Next() {
		var (
			similar     model.SimilarInsight
			label, flag string
		)
		dest := append(insightDest(&similar.Insight, &label, &flag), &similar.Distance)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		similar.Sentiment.Label = model.SentimentLabel(label)
		similar.CrisisOpportunityFlag = model.Flag(flag)
		results = append(results, similar)
	}
	return results, rows.Err()
}

func insightDest(i *model.Insight, label, flag *string) []any {
	return []any{
		&i.ID, &i.RawContentID, &i.ProfileID, &i.SummaryText, label, &i.Sentiment.Score,
		&i.IdentifiedEntities, &i.TopicClassification, flag, &i.CrisisOpportunityScore,
		&i.PotentialImpact, &i.LLMPrompt, &i.LLMResponse, &i.LLMModel, &i.CreatedAt,
	}
}

func scanInsight(row pgx.Row) (*model.Insight, error) {
	var (
		insight     model.Insight
		label, flag string
	)
	if err := row.Scan(insightDest(&insight, &label, &flag)...); err != nil {
		return nil, mapErr(err)
	}
	insight.Sentiment.Label = model.SentimentLabel(label)
	insight.CrisisOpportunityFlag = model.Flag(flag)
	return &insight, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
