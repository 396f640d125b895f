package admin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lumenbank/apiserver/internal/metrics"
)

func TestHandler__metrics(t *testing.T) {
	metrics.AccountsOpened.With("account_type", "Checking").Add(1)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "accounts_opened_total") {
		t.Errorf("metrics output missing accounts counter")
	}
}

func TestHandler__pprofToggle(t *testing.T) {
	t.Setenv("PPROF_HEAP", "no")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/heap", nil)
	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("got status %d, expected heap profile to be disabled", w.Code)
	}
}

func TestHandler__live(t *testing.T) {
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	if w.Code != http.StatusOK {
		t.Errorf("got status %d", w.Code)
	}
}
