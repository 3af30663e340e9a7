package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cognito.app/sentinel/common/llm"
)

var relevanceSchema = llm.GenerateSchema[Relevance]()

// relevanceContentChars bounds the page excerpt sent for relevance checks.
const relevanceContentChars = 4000

func (s *Service) EvaluateSourceRelevance(ctx context.Context, in RelevanceInput) (*Relevance, error) {
	var out Relevance
	_, err := s.chat(ctx, "evaluate source relevance", llm.Request{
		SystemPrompt: relevanceSystemPrompt,
		UserPrompt:   buildRelevancePrompt(in),
		SchemaName:   "source_relevance",
		Schema:       relevanceSchema,
		Temperature:  llm.Temp(relevanceTemperature),
	}, &out)
	if err != nil {
		return nil, err
	}

	out.Confidence = clamp(out.Confidence, 0, 1)

	slog.DebugContext(ctx, "source relevance evaluated",
		"url", in.URL,
		"is_relevant", out.IsRelevant,
		"confidence", out.Confidence)

	return &out, nil
}

func buildRelevancePrompt(in RelevanceInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Candidate URL\n%s\n\n", in.URL)
	fmt.Fprintf(&sb, "## Target entity\n%s\n\n", in.TargetEntity)
	if len(in.IndustryTags) > 0 {
		fmt.Fprintf(&sb, "## Industry\n%s\n\n", strings.Join(in.IndustryTags, ", "))
	}
	sb.WriteString("## Page excerpt\n")
	sb.WriteString(truncate(in.Content, relevanceContentChars))
	return sb.String()
}

const relevanceSystemPrompt = `You decide whether a web page is worth monitoring on an ongoing basis for news and discussion about a target entity.

A source is relevant when it regularly publishes content about the entity, its competitors, its customers or its industry. One-off mentions on unrelated sites, link farms, login walls and e-commerce listings are not relevant.

Return isRelevant, a confidence from 0.0 to 1.0, and one or two sentences of reasoning.`
