package dto

import (
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/service"
)

type CreateSourceRequest struct {
	URL              string   `json:"url" binding:"required,url,max=2048"`
	SourceType       string   `json:"source_type" binding:"omitempty,oneof=news social forum blog other"`
	CredibilityScore *float64 `json:"credibility_score" binding:"omitempty,min=0,max=1"`
}

func (r CreateSourceRequest) ToInput() service.SourceInput {
	return service.SourceInput{
		URL:              r.URL,
		SourceType:       model.SourceType(r.SourceType),
		CredibilityScore: r.CredibilityScore,
	}
}

type UpdateSourceRequest struct {
	SourceType       *string  `json:"source_type" binding:"omitempty,oneof=news social forum blog other"`
	CredibilityScore *float64 `json:"credibility_score" binding:"omitempty,min=0,max=1"`
	Status           *string  `json:"status" binding:"omitempty,oneof=active unreachable requires_attention"`
}

func (r UpdateSourceRequest) ToUpdate() service.SourceUpdate {
	var update service.SourceUpdate
	if r.SourceType != nil {
		t := model.SourceType(*r.SourceType)
		update.SourceType = &t
	}
	if r.Status != nil {
		s := model.SourceStatus(*r.Status)
		update.Status = &s
	}
	update.CredibilityScore = r.CredibilityScore
	return update
}
