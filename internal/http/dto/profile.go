package dto

import (
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/service"
)

type ProfileRequest struct {
	Name                    string             `json:"name" binding:"required,min=1,max=255"`
	TargetEntityDescription string             `json:"target_entity_description" binding:"max=4000"`
	Keywords                []string           `json:"keywords" binding:"max=100,dive,max=200"`
	IndustryTags            []string           `json:"industry_tags" binding:"max=50,dive,max=100"`
	SourceConfig            model.SourceConfig `json:"source_config"`
	AlertConfig             model.AlertConfig  `json:"alert_config"`
	Status                  string             `json:"status" binding:"omitempty,oneof=active paused"`
}

func (r ProfileRequest) ToInput() service.ProfileInput {
	return service.ProfileInput{
		Name:                    r.Name,
		TargetEntityDescription: r.TargetEntityDescription,
		Keywords:                r.Keywords,
		IndustryTags:            r.IndustryTags,
		SourceConfig:            r.SourceConfig,
		AlertConfig:             r.AlertConfig,
		Status:                  model.ProfileStatus(r.Status),
	}
}
