// Package metrics exposes Prometheus metrics for routing decisions.
//
// Example:
//
//	collector := metrics.NewCollector("", nil)
//	r, _ := router.NewRouter(nil, logger, router.WithRecorder(collector))
//	http.Handle("/metrics", collector.Handler())
package metrics
