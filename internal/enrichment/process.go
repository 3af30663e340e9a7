package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cognito.app/sentinel/common/llm"
	"cognito.app/sentinel/internal/model"
)

// Pointer fields let missing values be told apart from zero values.
type contentResponse struct {
	Summary                *string            `json:"summary" jsonschema_description:"Two to four sentence summary focused on the target entity"`
	Sentiment              *sentimentResponse `json:"sentiment" jsonschema_description:"Overall sentiment toward the target entity"`
	Entities               []string           `json:"entities" jsonschema_description:"People, organizations, products and places mentioned"`
	Topics                 []string           `json:"topics" jsonschema_description:"Short topic labels"`
	CrisisOpportunityFlag  *string            `json:"crisisOpportunityFlag" jsonschema:"enum=crisis,enum=opportunity,enum=neutral,enum=mixed"`
	CrisisOpportunityScore *float64           `json:"crisisOpportunityScore" jsonschema_description:"-1.0 (severe crisis) to 1.0 (strong opportunity); magnitude is intensity"`
	PotentialImpact        *string            `json:"potentialImpact" jsonschema_description:"Likely business impact for the target entity"`
}

type sentimentResponse struct {
	Label *string  `json:"label" jsonschema:"enum=positive,enum=negative,enum=neutral,enum=mixed"`
	Score *float64 `json:"score" jsonschema_description:"Confidence in the label, 0.0-1.0"`
}

var contentSchema = llm.GenerateSchema[contentResponse]()

func (s *Service) ProcessContent(ctx context.Context, in ContentInput) (*Analysis, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("content text is empty")
	}

	prompt := s.buildContentPrompt(in)
	start := time.Now()

	var raw contentResponse
	resp, err := s.chat(ctx, "process content", llm.Request{
		SystemPrompt: contentSystemPrompt,
		UserPrompt:   prompt,
		SchemaName:   "content_analysis",
		Schema:       contentSchema,
		Temperature:  llm.Temp(processTemperature),
	}, &raw)
	if err != nil {
		return nil, err
	}

	analysis := normalizeAnalysis(raw)
	analysis.Prompt = prompt
	analysis.RawResponse = resp.Content
	analysis.Model = resp.Model
	if analysis.Model == "" {
		analysis.Model = s.llm.Model()
	}

	slog.InfoContext(ctx, "content analyzed",
		"flag", analysis.CrisisOpportunityFlag,
		"score", analysis.CrisisOpportunityScore,
		"sentiment", analysis.Sentiment.Label,
		"latency_ms", time.Since(start).Milliseconds())

	return analysis, nil
}

// normalizeAnalysis fills every field the model left out with its neutral default.
func normalizeAnalysis(raw contentResponse) *Analysis {
	a := &Analysis{
		Summary:               NoSummary,
		Sentiment:             model.Sentiment{Label: model.SentimentNeutral, Score: 0.5},
		Entities:              nonEmpty(raw.Entities),
		Topics:                nonEmpty(raw.Topics),
		CrisisOpportunityFlag: model.FlagNeutral,
	}

	if raw.Summary != nil && strings.TrimSpace(*raw.Summary) != "" {
		a.Summary = strings.TrimSpace(*raw.Summary)
	}
	if raw.Sentiment != nil {
		if raw.Sentiment.Label != nil {
			if label := model.SentimentLabel(strings.ToLower(*raw.Sentiment.Label)); label.Valid() {
				a.Sentiment.Label = label
			}
		}
		if raw.Sentiment.Score != nil {
			a.Sentiment.Score = clamp(*raw.Sentiment.Score, 0, 1)
		}
	}
	if raw.CrisisOpportunityFlag != nil {
		if flag := model.Flag(strings.ToLower(*raw.CrisisOpportunityFlag)); flag.Valid() {
			a.CrisisOpportunityFlag = flag
		}
	}
	if raw.CrisisOpportunityScore != nil {
		a.CrisisOpportunityScore = clamp(*raw.CrisisOpportunityScore, -1, 1)
	}
	if raw.PotentialImpact != nil {
		a.PotentialImpact = strings.TrimSpace(*raw.PotentialImpact)
	}
	return a
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (s *Service) buildContentPrompt(in ContentInput) string {
	var sb strings.Builder

	sb.WriteString("## Target entity\n")
	if in.TargetEntity != "" {
		sb.WriteString(in.TargetEntity)
	} else {
		sb.WriteString("(not specified)")
	}
	sb.WriteString("\n\n")

	if len(in.Keywords) > 0 {
		sb.WriteString("## Keywords\n")
		sb.WriteString(strings.Join(in.Keywords, ", "))
		sb.WriteString("\n\n")
	}

	if in.Context != "" {
		sb.WriteString("## Context\n")
		sb.WriteString(in.Context)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Content\n")
	sb.WriteString(truncate(in.Text, s.opts.MaxInputChars))
	return sb.String()
}

const contentSystemPrompt = `You are a media intelligence analyst. You read web content and assess what it means for a monitored entity.

Return exactly these fields:

1. summary: two to four sentences on what the content says about the target entity.
2. sentiment: label (positive, negative, neutral or mixed) and score, your confidence in the label from 0.0 to 1.0.
3. entities: people, organizations, products and places that are mentioned.
4. topics: short topic labels such as "product recall", "earnings", "hiring".
5. crisisOpportunityFlag and crisisOpportunityScore:
   - crisis: reputational, legal, safety or financial risk. Score is negative, -1.0 is the most severe.
   - opportunity: partnerships, praise, market openings. Score is positive, 1.0 is the strongest.
   - mixed: both risk and upside. Sign follows whichever dominates.
   - neutral: nothing actionable. Score near 0.
6. potentialImpact: one or two sentences on the likely business impact.

## Rules

- Judge only from the content given. Do not invent facts.
- If the content is unrelated to the target entity, use neutral with a score of 0.
- Keep entity and topic lists under 15 items each.`
