package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Recognitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "recognitions_total",
		Help:      "Recognition attempts by outcome",
	}, []string{"outcome"})

	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "enrollments_total",
		Help:      "Enrollment attempts by outcome",
	}, []string{"outcome"})

	FacesEnrolled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "faces_enrolled_total",
		Help:      "Face embeddings written to the identity store",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceid",
		Name:      "inference_duration_seconds",
		Help:      "Duration of extraction and matching stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	CandidatesScored = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "faceid",
		Name:      "candidates_scored",
		Help:      "Stored embeddings compared per recognition",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})

	MatchScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceid",
		Name:      "match_score",
		Help:      "Best comparator score per recognition",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"outcome"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceid",
		Name:      "queue_depth",
		Help:      "Number of pending probe jobs",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceid",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceid",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
