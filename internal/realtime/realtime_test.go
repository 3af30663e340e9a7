package realtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cognito.app/sentinel/internal/realtime"
)

var _ = Describe("Channel", func() {
	It("appends the user id to the prefix", func() {
		Expect(realtime.Channel("alerts:user:", 42)).To(Equal("alerts:user:42"))
	})

	It("uses the default prefix when none is set", func() {
		Expect(realtime.Channel("", 7)).To(Equal(realtime.DefaultChannelPrefix + "7"))
	})
})

var _ = Describe("Hub", func() {
	It("rejects plain HTTP requests before subscribing", func() {
		hub := realtime.NewHub(nil, realtime.HubConfig{})
		req := httptest.NewRequest(http.MethodGet, "/api/realtime", nil)
		rec := httptest.NewRecorder()

		err := hub.Serve(context.Background(), rec, req, 1)
		Expect(err).To(HaveOccurred())
		Expect(rec.Code).To(BeNumerically(">=", http.StatusBadRequest))
		Expect(hub.Connections()).To(BeZero())
	})
})
