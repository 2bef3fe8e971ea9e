package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/allocator.v1.AllocationService/Allocate"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(10 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("AllocationService", "Allocate", "OK")); got != 1 {
		t.Fatalf("allocator_rpc_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "allocator_rpc_duration_seconds", map[string]string{
		"service": "AllocationService",
		"method":  "Allocate",
	}); count != 1 {
		t.Fatalf("allocator_rpc_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/allocator.v1.AllocationService/Describe"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.OutOfRange, "step 9 beyond track")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("AllocationService", "Describe", "OutOfRange")); got != 1 {
		t.Fatalf("allocator_rpc_requests_total error label = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesScenarioGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	collector.SetScenarioCounts(3, 7)
	collector.RPCRequests.WithLabelValues("svc", "method", "OK").Inc()
	collector.RPCDurations.WithLabelValues("svc", "method").Observe(0.01)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"allocator_rpc_requests_total",
		"allocator_rpc_duration_seconds",
		"scenario_satellites 3",
		"scenario_applications 7",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestNewRPCCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	second, err := NewRPCCollector(reg)
	if err != nil {
		t.Fatalf("second NewRPCCollector: %v", err)
	}
	second.RPCRequests.WithLabelValues("svc", "m", "OK").Inc()
	if got := testutil.ToFloat64(first.RPCRequests.WithLabelValues("svc", "m", "OK")); got != 1 {
		t.Fatalf("shared counter = %v, want 1", got)
	}
}

func TestNilRPCCollectorIsSafe(t *testing.T) {
	var c *RPCCollector
	c.SetScenarioCounts(1, 2)
	resp, err := c.UnaryServerInterceptor()(context.Background(), nil, nil, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})
	if err != nil || resp != "ok" {
		t.Fatalf("interceptor = (%v, %v), want (ok, nil)", resp, err)
	}
}

func TestSplitMethod(t *testing.T) {
	cases := []struct {
		in            string
		service, name string
	}{
		{"/allocator.v1.AllocationService/Allocate", "AllocationService", "Allocate"},
		{"AllocationService/Describe", "AllocationService", "Describe"},
		{"", "unknown", "unknown"},
		{"/justone", "unknown", "unknown"},
	}
	for _, tc := range cases {
		svc, m := SplitMethod(tc.in)
		if svc != tc.service || m != tc.name {
			t.Errorf("SplitMethod(%q) = (%q, %q), want (%q, %q)", tc.in, svc, m, tc.service, tc.name)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
