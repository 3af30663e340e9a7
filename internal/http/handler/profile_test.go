package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cognito.app/sentinel/internal/http/handler"
	"cognito.app/sentinel/internal/http/middleware"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/service"
	"cognito.app/sentinel/internal/store"
)

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reader = bytes.NewBuffer(nil)
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

var _ = Describe("ProfileHandler", func() {
	var (
		router     *gin.Engine
		profiles   *mockProfileService
		dashboards *mockDashboardService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		profiles = &mockProfileService{}
		dashboards = &mockDashboardService{}

		h := handler.NewProfileHandler(profiles, dashboards)
		rg := router.Group("/profiles", middleware.RequireAuth(&mockAuthService{}))
		rg.GET("", h.List)
		rg.POST("", h.Create)
		rg.GET("/:id", h.Get)
		rg.PUT("/:id", h.Update)
		rg.DELETE("/:id", h.Delete)
		rg.GET("/:id/dashboard", h.Dashboard)
	})

	It("lists the caller's profiles", func() {
		var gotUser int64
		profiles.listFn = func(_ context.Context, userID int64) ([]model.MonitoringProfile, error) {
			gotUser = userID
			return []model.MonitoringProfile{{ID: 1, UserID: userID, Name: "Acme"}}, nil
		}

		w := doRequest(router, http.MethodGet, "/profiles", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(gotUser).To(Equal(testUserID))
		var resp []map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp).To(HaveLen(1))
		Expect(resp[0]["name"]).To(Equal("Acme"))
	})

	It("creates a profile from the request body", func() {
		var got service.ProfileInput
		profiles.createFn = func(_ context.Context, userID int64, in service.ProfileInput) (*model.MonitoringProfile, error) {
			got = in
			return &model.MonitoringProfile{ID: 9, UserID: userID, Name: in.Name}, nil
		}

		w := doRequest(router, http.MethodPost, "/profiles", map[string]any{
			"name":     "Acme Corp",
			"keywords": []string{"acme", "recall"},
			"source_config": map[string]any{
				"seed_urls":             []string{"https://news.example.com"},
				"auto_discover_sources": true,
			},
			"alert_config": map[string]any{
				"sensitivity":           "high",
				"notification_channels": []string{"in_app"},
			},
		})

		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(got.Name).To(Equal("Acme Corp"))
		Expect(got.Keywords).To(ConsistOf("acme", "recall"))
		Expect(got.SourceConfig.SeedURLs).To(ConsistOf("https://news.example.com"))
		Expect(got.SourceConfig.AutoDiscoverSources).To(BeTrue())
		Expect(got.AlertConfig.Sensitivity).To(Equal(model.SensitivityHigh))
	})

	It("rejects a profile without a name", func() {
		w := doRequest(router, http.MethodPost, "/profiles", map[string]any{"keywords": []string{"x"}})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects an unknown status", func() {
		w := doRequest(router, http.MethodPut, "/profiles/3", map[string]any{"name": "Acme", "status": "error"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("maps validation failures from the service to 400", func() {
		profiles.createFn = func(_ context.Context, _ int64, _ service.ProfileInput) (*model.MonitoringProfile, error) {
			return nil, fmt.Errorf("%w: webhook_url is required", service.ErrInvalidInput)
		}

		w := doRequest(router, http.MethodPost, "/profiles", map[string]any{"name": "Acme"})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("webhook_url is required"))
	})

	It("returns 404 for a profile owned by someone else", func() {
		profiles.getFn = func(_ context.Context, _, _ int64) (*model.MonitoringProfile, error) {
			return nil, service.ErrForbidden
		}

		w := doRequest(router, http.MethodGet, "/profiles/5", nil)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("returns 400 for a malformed id", func() {
		w := doRequest(router, http.MethodGet, "/profiles/abc", nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 204 after deleting", func() {
		var deleted int64
		profiles.deleteFn = func(_ context.Context, _, profileID int64) error {
			deleted = profileID
			return nil
		}

		w := doRequest(router, http.MethodDelete, "/profiles/8", nil)

		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(deleted).To(Equal(int64(8)))
	})

	It("hides internal errors behind a generic message", func() {
		profiles.deleteFn = func(_ context.Context, _, _ int64) error {
			return errors.New("connection reset")
		}

		w := doRequest(router, http.MethodDelete, "/profiles/8", nil)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(ContainSubstring("failed to delete profile"))
		Expect(w.Body.String()).NotTo(ContainSubstring("connection reset"))
	})

	It("serves the dashboard", func() {
		dashboards.getFn = func(_ context.Context, _, profileID int64) (*service.Dashboard, error) {
			return &service.Dashboard{
				Profile:        &model.MonitoringProfile{ID: profileID},
				NewAlerts:      map[model.Severity]int{model.SeverityCritical: 2},
				RecentAlerts:   []model.Alert{},
				RecentInsights: []model.Insight{},
			}, nil
		}

		w := doRequest(router, http.MethodGet, "/profiles/4/dashboard", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["newAlertsBySeverity"]).To(HaveKeyWithValue("critical", BeNumerically("==", 2)))
	})

	It("answers 404 when the dashboard profile is missing", func() {
		dashboards.getFn = func(_ context.Context, _, _ int64) (*service.Dashboard, error) {
			return nil, fmt.Errorf("getting profile: %w", store.ErrNotFound)
		}

		w := doRequest(router, http.MethodGet, "/profiles/4/dashboard", nil)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})
