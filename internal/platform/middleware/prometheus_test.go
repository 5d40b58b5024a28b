package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheus_CountsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/patients/:id/edit", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway, "down") })

	for _, p := range []string{"/patients/1/edit", "/patients/2/edit", "/boom", "/metrics"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/patients/:id/edit", "200")); got != 2 {
		t.Errorf("expected 2 requests for edit route, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/boom", "502")); got != 1 {
		t.Errorf("expected 1 failed request, got %v", got)
	}
	if n := testutil.CollectAndCount(m.requests); n != 2 {
		t.Errorf("expected 2 series (metrics path excluded), got %d", n)
	}
}

func TestNewPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheus(reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewPrometheus(reg); err == nil {
		t.Error("expected error on duplicate registration")
	}
}
