package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrometheus(t *testing.T) {
	m := NewMetrics(nil, 10)

	m.RegisterCounter("test_total", "Total number of smth")
	m.RegisterCounter("any_total", "Total number of anything")
	m.RegisterGauge("tests", "Number of active smth")

	m.Gauge("tests").Set(123)
	m.Counter("test_total").Add(3)

	actual := m.Prometheus()

	assert.Contains(t, actual,
		`
# HELP ocpp_central_test_total Total number of smth
# TYPE ocpp_central_test_total counter
ocpp_central_test_total 3
`,
	)

	assert.Contains(t, actual,
		`
# HELP ocpp_central_any_total Total number of anything
# TYPE ocpp_central_any_total counter
ocpp_central_any_total 0
`,
	)

	assert.Contains(t, actual,
		`
# HELP ocpp_central_tests Number of active smth
# TYPE ocpp_central_tests gauge
ocpp_central_tests 123
`,
	)
}

func TestPrometheusWithTags(t *testing.T) {
	m := NewMetrics(nil, 10)
	m.DefaultTags(map[string]string{"env": "dev", "instance": "R2D2"})

	m.RegisterCounter("test_total", "Total number of smth")
	m.Counter("test_total").Add(3)

	actual := m.Prometheus()

	assert.Contains(t, actual, `ocpp_central_test_total{env="dev", instance="R2D2"} 3`)
}

func TestPrometheusHandler(t *testing.T) {
	m := NewMetrics(nil, 10)

	m.RegisterCounter("test_total", "Total number of smth")
	m.RegisterCounter("any_total", "Total number of anything")

	m.Counter("test_total").Add(3)

	req, err := http.NewRequest("GET", "/", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(m.PrometheusHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()

	assert.Contains(t, body, "ocpp_central_test_total 3")
	assert.Contains(t, body, "ocpp_central_any_total 0")
}
