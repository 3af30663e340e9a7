// Package alerting decides whether an insight raises an alert and how severe it is.
// Everything here is pure: no I/O, no clocks, no randomness.
package alerting

import (
	"fmt"
	"math"
	"strings"

	"cognito.app/sentinel/internal/model"
)

// negativeSentimentMargin is added to the threshold for the negative-sentiment rule,
// which fires regardless of the crisis/opportunity flag.
const negativeSentimentMargin = 0.2

var thresholds = map[model.Sensitivity]float64{
	model.SensitivityLow:    0.7,
	model.SensitivityMedium: 0.5,
	model.SensitivityHigh:   0.3,
}

// Threshold maps a profile sensitivity to a score threshold. Unknown or empty
// sensitivities use the medium threshold.
func Threshold(s model.Sensitivity) float64 {
	if t, ok := thresholds[s]; ok {
		return t
	}
	return thresholds[model.SensitivityMedium]
}

type Input struct {
	Flag           model.Flag
	Score          float64
	SentimentLabel model.SentimentLabel
	SentimentScore float64
	Sensitivity    model.Sensitivity
}

// InputFor builds the decision input for an insight under a profile's alert config.
func InputFor(insight *model.Insight, cfg model.AlertConfig) Input {
	return Input{
		Flag:           insight.CrisisOpportunityFlag,
		Score:          insight.CrisisOpportunityScore,
		SentimentLabel: insight.Sentiment.Label,
		SentimentScore: insight.Sentiment.Score,
		Sensitivity:    cfg.Sensitivity,
	}
}

// ShouldAlert reports whether any firing rule matches.
func ShouldAlert(in Input) bool {
	t := Threshold(in.Sensitivity)

	switch in.Flag {
	case model.FlagCrisis, model.FlagMixed:
		if math.Abs(in.Score) >= t {
			return true
		}
	case model.FlagOpportunity:
		if in.Score >= t {
			return true
		}
	}

	return in.SentimentLabel == model.SentimentNegative && in.SentimentScore >= t+negativeSentimentMargin
}

// SeverityOf maps a flag and score to a severity. It does not decide whether to fire.
func SeverityOf(flag model.Flag, score float64) model.Severity {
	abs := math.Abs(score)

	switch flag {
	case model.FlagCrisis:
		switch {
		case abs >= 0.8:
			return model.SeverityCritical
		case abs >= 0.6:
			return model.SeverityHigh
		case abs >= 0.4:
			return model.SeverityMedium
		default:
			return model.SeverityLow
		}
	case model.FlagOpportunity:
		switch {
		case score >= 0.8:
			return model.SeverityHigh
		case score >= 0.6:
			return model.SeverityMedium
		default:
			return model.SeverityLow
		}
	case model.FlagMixed:
		if abs >= 0.6 {
			return model.SeverityMedium
		}
		return model.SeverityLow
	default:
		return model.SeverityInfo
	}
}

type Decision struct {
	Fire      bool           `json:"fire"`
	Severity  model.Severity `json:"severity,omitempty"`
	Threshold float64        `json:"threshold"`
}

// Decide combines ShouldAlert and SeverityOf. Severity is only set when firing.
func Decide(in Input) Decision {
	d := Decision{Threshold: Threshold(in.Sensitivity)}
	if !ShouldAlert(in) {
		return d
	}
	d.Fire = true
	d.Severity = SeverityOf(in.Flag, in.Score)
	return d
}

var flagTitles = map[model.Flag]string{
	model.FlagCrisis:      "Potential crisis",
	model.FlagOpportunity: "Opportunity",
	model.FlagMixed:       "Mixed signals",
	model.FlagNeutral:     "Negative coverage",
}

// Title builds a short alert title such as "[CRITICAL] Potential crisis detected for Acme Corp".
func Title(flag model.Flag, severity model.Severity, entity string) string {
	label, ok := flagTitles[flag]
	if !ok {
		label = "Notable content"
	}
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return fmt.Sprintf("[%s] %s detected", strings.ToUpper(string(severity)), label)
	}
	return fmt.Sprintf("[%s] %s detected for %s", strings.ToUpper(string(severity)), label, entity)
}

// Description is the alert body: the insight summary followed by its impact assessment.
func Description(insight *model.Insight) string {
	var sb strings.Builder
	sb.WriteString(insight.SummaryText)
	if impact := strings.TrimSpace(insight.PotentialImpact); impact != "" {
		sb.WriteString("\n\nPotential impact: ")
		sb.WriteString(impact)
	}
	return sb.String()
}
