package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		videoTokensTotal,
		videoTokensActive,
		videoStreamRequestsTotal,
	)
}

var (
	videoTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_tokens_total",
			Help: "Video token operations by op (issue/refresh/validate) and result.",
		},
		[]string{"op", "result"},
	)

	videoTokensActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_tokens_active",
			Help: "Tokens currently held in the in-process token cache.",
		},
	)

	videoStreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_stream_requests_total",
			Help: "Streaming requests by response status.",
		},
		[]string{"status"},
	)
)

func IncVideoToken(op, result string) {
	videoTokensTotal.WithLabelValues(norm(op), norm(result)).Inc()
}

func SetVideoTokensActive(n int) {
	videoTokensActive.Set(float64(n))
}

func IncVideoStream(status string) {
	videoStreamRequestsTotal.WithLabelValues(norm(status)).Inc()
}
