package dto

import (
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type ListAlertsQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=new acknowledged in_progress resolved dismissed"`
	Severity string `form:"severity" binding:"omitempty,oneof=critical high medium low info"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset   int    `form:"offset" binding:"omitempty,min=0"`
}

func (q ListAlertsQuery) ToFilter() store.AlertFilter {
	filter := store.AlertFilter{Limit: pageSize(q.Limit), Offset: q.Offset}
	if q.Status != "" {
		s := model.AlertStatus(q.Status)
		filter.Status = &s
	}
	if q.Severity != "" {
		s := model.Severity(q.Severity)
		filter.Severity = &s
	}
	return filter
}

type UpdateAlertStatusRequest struct {
	Status string  `json:"status" binding:"required,oneof=new acknowledged in_progress resolved dismissed"`
	Notes  *string `json:"notes" binding:"omitempty,max=4000"`
}

type ListInsightsQuery struct {
	Flag   string `form:"flag" binding:"omitempty,oneof=crisis opportunity neutral mixed"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

func (q ListInsightsQuery) ToFilter() store.InsightFilter {
	filter := store.InsightFilter{Limit: pageSize(q.Limit), Offset: q.Offset}
	if q.Flag != "" {
		f := model.Flag(q.Flag)
		filter.Flag = &f
	}
	return filter
}

type SimilarInsightsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}
