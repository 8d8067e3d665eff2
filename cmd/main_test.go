package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	service "github.com/okian/assay/internal/app"
	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/pkg/logger"
)

func TestMux(t *testing.T) {
	convey.Convey("Given a started service behind the full mux", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		svc := service.New(service.WithWorkerCount(1), service.WithLogger(logger.Nop()))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		convey.So(svc.Seeder().PutSession(ctx, model.Session{ID: "s1", Goal: model.GoalOverview}), convey.ShouldBeNil)

		mux := newMux(ctx, svc)
		serve := func(method, path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(method, path, http.NoBody))
			return w
		}

		convey.Convey("Then the API reference and business routes are both served", func() {
			convey.So(serve(http.MethodGet, "/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/healthz").Code, convey.ShouldEqual, http.StatusOK)

			w := serve(http.MethodPost, "/sessions/s1/score")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"COMPLETED"`)

			convey.So(serve(http.MethodGet, "/sessions/s1/result").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/sessions/s2/result").Code, convey.ShouldEqual, http.StatusNotFound)
		})

		convey.Convey("Then the scoring metrics are exposed", func() {
			serve(http.MethodPost, "/sessions/s1/score")
			body := serve(http.MethodGet, "/metrics").Body.String()
			convey.So(strings.Contains(body, "assay_scoring"), convey.ShouldBeTrue)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metric updaters", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		convey.So(func() { startServiceMetricsUpdater(ctx, service.New()) }, convey.ShouldNotPanic)
	})
}
