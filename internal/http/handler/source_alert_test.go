package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cognito.app/sentinel/internal/http/handler"
	"cognito.app/sentinel/internal/http/middleware"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/service"
	"cognito.app/sentinel/internal/store"
)

var _ = Describe("SourceHandler", func() {
	var (
		router  *gin.Engine
		sources *mockSourceService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		sources = &mockSourceService{}

		h := handler.NewSourceHandler(sources)
		auth := middleware.RequireAuth(&mockAuthService{})
		router.POST("/profiles/:id/sources", auth, h.Create)
		router.PUT("/sources/:id", auth, h.Update)
	})

	It("creates a source with an optional type", func() {
		var got service.SourceInput
		sources.createFn = func(_ context.Context, _, profileID int64, in service.SourceInput) (*model.DataSource, error) {
			got = in
			return &model.DataSource{ID: 3, ProfileID: &profileID, URL: in.URL}, nil
		}

		w := doRequest(router, http.MethodPost, "/profiles/1/sources", map[string]any{
			"url": "https://forum.example.com/t/1",
		})

		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(got.URL).To(Equal("https://forum.example.com/t/1"))
		Expect(got.SourceType).To(BeEmpty())
	})

	It("rejects a credibility score outside 0..1", func() {
		w := doRequest(router, http.MethodPost, "/profiles/1/sources", map[string]any{
			"url":               "https://example.com",
			"credibility_score": 1.5,
		})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("answers 409 when the URL is already monitored", func() {
		sources.createFn = func(_ context.Context, _, _ int64, _ service.SourceInput) (*model.DataSource, error) {
			return nil, service.ErrSourceExists
		}

		w := doRequest(router, http.MethodPost, "/profiles/1/sources", map[string]any{"url": "https://example.com"})

		Expect(w.Code).To(Equal(http.StatusConflict))
	})

	It("passes only the provided fields on update", func() {
		var got service.SourceUpdate
		sources.updateFn = func(_ context.Context, _, sourceID int64, in service.SourceUpdate) (*model.DataSource, error) {
			got = in
			return &model.DataSource{ID: sourceID, Status: model.SourceStatusActive}, nil
		}

		w := doRequest(router, http.MethodPut, "/sources/3", map[string]any{"status": "active"})

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(got.Status).NotTo(BeNil())
		Expect(*got.Status).To(Equal(model.SourceStatusActive))
		Expect(got.SourceType).To(BeNil())
		Expect(got.CredibilityScore).To(BeNil())
	})
})

var _ = Describe("AlertHandler", func() {
	var (
		router *gin.Engine
		alerts *mockAlertService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		alerts = &mockAlertService{}

		h := handler.NewAlertHandler(alerts)
		auth := middleware.RequireAuth(&mockAuthService{})
		router.GET("/profiles/:id/alerts", auth, h.ListByProfile)
		router.PUT("/alerts/:id/status", auth, h.UpdateStatus)
	})

	It("translates query parameters into a filter", func() {
		var got store.AlertFilter
		alerts.listFn = func(_ context.Context, _, _ int64, filter store.AlertFilter) ([]model.Alert, error) {
			got = filter
			return []model.Alert{}, nil
		}

		w := doRequest(router, http.MethodGet, "/profiles/1/alerts?status=new&severity=critical&limit=10", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(*got.Status).To(Equal(model.AlertStatusNew))
		Expect(*got.Severity).To(Equal(model.SeverityCritical))
		Expect(got.Limit).To(Equal(10))
	})

	It("defaults the page size", func() {
		var got store.AlertFilter
		alerts.listFn = func(_ context.Context, _, _ int64, filter store.AlertFilter) ([]model.Alert, error) {
			got = filter
			return []model.Alert{}, nil
		}

		w := doRequest(router, http.MethodGet, "/profiles/1/alerts", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(got.Status).To(BeNil())
		Expect(got.Limit).To(Equal(50))
	})

	It("rejects an unknown severity", func() {
		w := doRequest(router, http.MethodGet, "/profiles/1/alerts?severity=urgent", nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("updates the status with notes", func() {
		alerts.updateStatusFn = func(_ context.Context, _, alertID int64, status model.AlertStatus, notes *string) (*model.Alert, error) {
			return &model.Alert{ID: alertID, Status: status, UserNotes: notes}, nil
		}

		w := doRequest(router, http.MethodPut, "/alerts/12/status", map[string]any{
			"status": "acknowledged",
			"notes":  "looking into it",
		})

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["status"]).To(Equal("acknowledged"))
		Expect(resp["user_notes"]).To(Equal("looking into it"))
	})

	It("rejects an invalid status before calling the service", func() {
		called := false
		alerts.updateStatusFn = func(_ context.Context, _, _ int64, _ model.AlertStatus, _ *string) (*model.Alert, error) {
			called = true
			return nil, nil
		}

		w := doRequest(router, http.MethodPut, "/alerts/12/status", map[string]any{"status": "closed"})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(called).To(BeFalse())
	})

	It("answers 404 for an alert of another user", func() {
		alerts.updateStatusFn = func(_ context.Context, _, _ int64, _ model.AlertStatus, _ *string) (*model.Alert, error) {
			return nil, fmt.Errorf("alert 12: %w", service.ErrForbidden)
		}

		w := doRequest(router, http.MethodPut, "/alerts/12/status", map[string]any{"status": "resolved"})

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})
