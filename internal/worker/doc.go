// Package worker implements the condition worker lifecycle and Redis Streams integration.
//
// The worker reads condition requests from a Redis stream consumer group,
// evaluates the request's records against the node's routing rules and
// publishes one decision per record to the result stream. Failed requests
// are published to "<RESULT_STREAM>.errors" with their error kind.
//
// A request carries its record inline, a batch of records, or only an
// execution_id, in which case the record is the "inputs" object of the
// execution state:
//
//	{"execution_id": "e-1", "node_id": "check-order",
//	 "record": {"amount": 1200, "currency": "EUR"},
//	 "config": {"rule_set": "orders"}}
//
// Example usage:
//
//	cfg, _ := config.Load()
//	redisClient := redis.NewClient(&redis.Options{...})
//	r, _ := router.NewRouter(llmClient, logger)
//
//	w := worker.NewWorker(cfg, redisClient, r, worker.NewRedisStateStore(redisClient, logger), logger)
//	if err := w.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop(10 * time.Second)
//
// Health checks and metrics are served by a separate HTTP server:
//
//	healthServer := worker.NewHealthServer(8082, redisClient, collector.Handler(), logger)
//	healthServer.Start()
//	defer healthServer.Stop()
package worker
