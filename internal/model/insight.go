package model

import "time"

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentMixed    SentimentLabel = "mixed"
)

type Flag string

const (
	FlagCrisis      Flag = "crisis"
	FlagOpportunity Flag = "opportunity"
	FlagNeutral     Flag = "neutral"
	FlagMixed       Flag = "mixed"
)

func (f Flag) Valid() bool {
	switch f {
	case FlagCrisis, FlagOpportunity, FlagNeutral, FlagMixed:
		return true
	}
	return false
}

func (l SentimentLabel) Valid() bool {
	switch l {
	case SentimentPositive, SentimentNegative, SentimentNeutral, SentimentMixed:
		return true
	}
	return false
}

type Sentiment struct {
	Label SentimentLabel `json:"label"`
	Score float64        `json:"score"`
}

// Insight is immutable once stored.
type Insight struct {
	ID                     int64     `json:"id"`
	RawContentID           int64     `json:"raw_content_id"`
	ProfileID              int64     `json:"profile_id"`
	SummaryText            string    `json:"summary_text"`
	Sentiment              Sentiment `json:"sentiment_analysis"`
	IdentifiedEntities     []string  `json:"identified_entities"`
	TopicClassification    []string  `json:"topic_classification"`
	CrisisOpportunityFlag  Flag      `json:"crisis_opportunity_flag"`
	CrisisOpportunityScore float64   `json:"crisis_opportunity_score"`
	PotentialImpact        string    `json:"potential_impact_assessment"`
	LLMPrompt              string    `json:"-"`
	LLMResponse            string    `json:"-"`
	LLMModel               string    `json:"llm_model,omitempty"`
	Embedding              []float32 `json:"-"`
	CreatedAt              time.Time `json:"created_at"`
}

// SimilarInsight is an insight ranked by embedding distance to a query vector.
type SimilarInsight struct {
	Insight
	Distance float64 `json:"distance"`
}
