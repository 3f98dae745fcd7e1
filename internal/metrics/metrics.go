package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSeen = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emul",
		Name:      "messages_total",
		Help:      "Inbound IRC messages by kind.",
	}, []string{"kind"})

	Triggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emul",
		Name:      "triggers_total",
		Help:      "Conversation runs started, by trigger.",
	}, []string{"trigger"})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emul",
		Name:      "tool_calls_total",
		Help:      "Tool dispatches by tool and status.",
	}, []string{"tool", "status"})

	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emul",
		Name:      "llm_requests_total",
		Help:      "LLM requests by status.",
	}, []string{"status"})

	LLMLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "emul",
		Name:      "llm_request_seconds",
		Help:      "LLM request latency.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	LinesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "emul",
		Name:      "lines_sent_total",
		Help:      "Outbound IRC lines sent.",
	})

	DroppedTriggers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "emul",
		Name:      "triggers_dropped_total",
		Help:      "Triggers dropped because a channel queue was full.",
	})
)

// Serve exposes /metrics and /healthz until the context is canceled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
