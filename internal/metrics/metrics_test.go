package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentLabelsByRoutePattern(t *testing.T) {
	router := chi.NewRouter()
	router.Use(Instrument)
	router.Get("/notes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/notes/{id}", "418"))
	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notes/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/notes/{id}", "418"))
	assert.Equal(t, 3.0, after-before)
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(gateRejections.WithLabelValues("revoked"))
	ObserveRejection("revoked")
	assert.Equal(t, 1.0, testutil.ToFloat64(gateRejections.WithLabelValues("revoked"))-before)

	before = testutil.ToFloat64(revocationsAdded)
	ObserveRevocation()
	assert.Equal(t, 1.0, testutil.ToFloat64(revocationsAdded)-before)

	before = testutil.ToFloat64(loginAttempts.WithLabelValues("success"))
	ObserveLogin("success")
	assert.Equal(t, 1.0, testutil.ToFloat64(loginAttempts.WithLabelValues("success"))-before)
}

func TestHandlerServesMetrics(t *testing.T) {
	ObserveRegistryError("is_revoked")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "safescribe_revocation_registry_errors_total")
}

func TestInstrumentDefaultsToOKWithoutWriteHeader(t *testing.T) {
	router := chi.NewRouter()
	router.Use(Instrument)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/health", "200"))-before)
}

func TestObservePeerRejection(t *testing.T) {
	before := testutil.ToFloat64(peerRejections.WithLabelValues("Revoke", "invalid_service_token"))
	ObservePeerRejection("Revoke", "invalid_service_token")
	assert.Equal(t, 1.0, testutil.ToFloat64(peerRejections.WithLabelValues("Revoke", "invalid_service_token"))-before)
}
