package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aescanero/dago-libs/pkg/ports"
	"github.com/aescanero/dago-node-condition/internal/config"
	"github.com/aescanero/dago-node-condition/internal/eval/condition"
	"github.com/aescanero/dago-node-condition/internal/router"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// inputsKey is the state entry holding the record of an execution.
const inputsKey = "inputs"

// Worker consumes condition requests from a Redis stream
type Worker struct {
	id            string
	config        *config.Config
	redisClient   *redis.Client
	router        *router.Router
	stateStore    ports.StateStorage
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
	streamKey     string
	consumerGroup string
	resultStream  string
	errorStream   string
}

// NewWorker creates a new worker. stateStore may be nil when every request
// carries its records inline.
func NewWorker(
	cfg *config.Config,
	redisClient *redis.Client,
	routerInstance *router.Router,
	stateStore ports.StateStorage,
	logger *zap.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:            cfg.WorkerID,
		config:        cfg,
		redisClient:   redisClient,
		router:        routerInstance,
		stateStore:    stateStore,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		streamKey:     cfg.StreamKey,
		consumerGroup: cfg.ConsumerGroup,
		resultStream:  cfg.ResultStream,
		errorStream:   cfg.ResultStream + ".errors",
	}
}

// Start starts the worker
func (w *Worker) Start() error {
	w.logger.Info("starting condition worker",
		zap.String("worker_id", w.id),
		zap.String("stream_key", w.streamKey),
		zap.String("consumer_group", w.consumerGroup),
	)

	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	go w.processWork()

	w.logger.Info("condition worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop stops the worker and waits for the in-flight message, up to timeout.
func (w *Worker) Stop(timeout time.Duration) error {
	w.logger.Info("stopping condition worker", zap.String("worker_id", w.id))

	w.cancel()

	select {
	case <-w.done:
	case <-time.After(timeout):
		return fmt.Errorf("worker did not stop within %s", timeout)
	}

	w.logger.Info("condition worker stopped", zap.String("worker_id", w.id))
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.redisClient.XGroupCreateMkStream(w.ctx, w.streamKey, w.consumerGroup, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.streamKey),
	)
	return nil
}

// processWork reads the stream until the worker is stopped
func (w *Worker) processWork() {
	defer close(w.done)
	w.logger.Info("starting work processing loop")

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("work processing loop stopped")
			return
		default:
		}

		streams, err := w.redisClient.XReadGroup(w.ctx, &redis.XReadGroupArgs{
			Group:    w.consumerGroup,
			Consumer: w.id,
			Streams:  []string{w.streamKey, ">"},
			Count:    1,
			Block:    w.config.BlockTime,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) || w.ctx.Err() != nil {
				continue
			}
			w.logger.Error("failed to read from stream", zap.Error(err))
			select {
			case <-w.ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				w.handleMessage(message)
			}
		}
	}
}

// publishTimeout bounds each publish and ack of a claimed message.
const publishTimeout = 5 * time.Second

// handleMessage handles a single condition request message. A claimed
// message is finished on a context Stop does not cancel, so its decision
// and ack are not lost during shutdown.
func (w *Worker) handleMessage(message redis.XMessage) {
	ctx := context.WithoutCancel(w.ctx)
	messageID := message.ID
	w.logger.Info("processing condition request",
		zap.String("message_id", messageID),
	)

	request, err := ParseWorkRequest(message.Values)
	if err != nil {
		w.logger.Error("failed to parse work request",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		w.publishError(ctx, &WorkRequest{}, err)
		w.acknowledgeMessage(ctx, messageID)
		return
	}

	decisions, err := w.Process(ctx, request)
	if err == nil {
		err = w.publishDecisions(ctx, decisions)
	}
	if err != nil {
		w.logger.Error("failed to process condition request",
			zap.String("message_id", messageID),
			zap.String("execution_id", request.ExecutionID),
			zap.String("error_kind", condition.KindOf(err)),
			zap.Error(err),
		)
		w.publishError(ctx, request, err)
	}

	w.acknowledgeMessage(ctx, messageID)
}

// WorkRequest represents a condition work request. Records are taken from
// Record, then Records, then the execution state's inputs.
type WorkRequest struct {
	ExecutionID string                   `json:"execution_id"`
	NodeID      string                   `json:"node_id"`
	Record      map[string]interface{}   `json:"record,omitempty"`
	Records     []map[string]interface{} `json:"records,omitempty"`
	// Config stays raw so condition trees are decoded in document order.
	Config json.RawMessage `json:"config"`
}

// Decision is published to the result stream for every evaluated record.
type Decision struct {
	DecisionID  string    `json:"decision_id"`
	ExecutionID string    `json:"execution_id"`
	NodeID      string    `json:"node_id"`
	Index       int       `json:"index"`
	BatchSize   int       `json:"batch_size"`
	Matched     bool      `json:"matched"`
	TargetNode  string    `json:"target_node"`
	RuleName    string    `json:"rule_name,omitempty"`
	Message     string    `json:"message,omitempty"`
	Reasoning   string    `json:"reasoning"`
	Mode        string    `json:"mode"`
	PathTaken   string    `json:"path_taken"`
	Timestamp   time.Time `json:"timestamp"`
}

// ParseWorkRequest parses a work request from a Redis message
func ParseWorkRequest(values map[string]interface{}) (*WorkRequest, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var request WorkRequest
	decoder := json.NewDecoder(strings.NewReader(dataStr))
	decoder.UseNumber()
	if err := decoder.Decode(&request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work request: %w", err)
	}

	if request.Record != nil {
		request.Record = normalizeNumbers(request.Record).(map[string]interface{})
	}
	for i, record := range request.Records {
		request.Records[i] = normalizeNumbers(record).(map[string]interface{})
	}

	return &request, nil
}

// normalizeNumbers replaces json.Number values with int64, uint64 or float64
// so that integers above 2^53 keep their exact value.
func normalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return u
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]interface{}:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []interface{}:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	}
	return v
}

// Process evaluates every record of the request. Any failing record fails
// the whole request. Fields without a comparable form, such as nested
// objects, only fail a request whose conditions read them.
func (w *Worker) Process(ctx context.Context, request *WorkRequest) ([]*Decision, error) {
	nodeConfig, err := parseNodeConfig(request.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse node config: %w", err)
	}

	raw, err := w.loadRecords(ctx, request)
	if err != nil {
		return nil, err
	}

	records := make([]condition.Record, len(raw))
	for i, fields := range raw {
		records[i], err = condition.NewRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	decisions := make([]*Decision, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.BatchConcurrency)

	for i, record := range records {
		i, record := i, record
		g.Go(func() error {
			result, err := w.router.Route(gctx, record, nodeConfig)
			if err != nil {
				if len(records) > 1 {
					return fmt.Errorf("record %d: %w", i, err)
				}
				return err
			}
			decisions[i] = newDecision(request, result, i, len(records))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// loadRecords returns the records to evaluate for a request
func (w *Worker) loadRecords(ctx context.Context, request *WorkRequest) ([]map[string]interface{}, error) {
	if request.Record != nil {
		return []map[string]interface{}{request.Record}, nil
	}
	if len(request.Records) > 0 {
		return request.Records, nil
	}

	if w.stateStore == nil {
		return nil, fmt.Errorf("request has no records and no state store is configured")
	}
	if request.ExecutionID == "" {
		return nil, fmt.Errorf("request has no records and no execution_id")
	}

	st, err := w.stateStore.Load(ctx, request.ExecutionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	inputs, ok := st[inputsKey].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("state for execution %s has no %q object", request.ExecutionID, inputsKey)
	}
	return []map[string]interface{}{inputs}, nil
}

// parseNodeConfig decodes the node configuration
func parseNodeConfig(data json.RawMessage) (*router.NodeConfig, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("config is required")
	}

	var nodeConfig router.NodeConfig
	if err := json.Unmarshal(data, &nodeConfig); err != nil {
		return nil, err
	}

	return &nodeConfig, nil
}

func newDecision(request *WorkRequest, result *router.RoutingResult, index, size int) *Decision {
	return &Decision{
		DecisionID:  uuid.NewString(),
		ExecutionID: request.ExecutionID,
		NodeID:      request.NodeID,
		Index:       index,
		BatchSize:   size,
		Matched:     result.Matched,
		TargetNode:  result.TargetNode,
		RuleName:    result.RuleName,
		Message:     result.Message,
		Reasoning:   result.Reasoning,
		Mode:        result.Mode,
		PathTaken:   result.PathTaken,
		Timestamp:   time.Now().UTC(),
	}
}

// publishDecisions publishes the decisions to the result stream
func (w *Worker) publishDecisions(ctx context.Context, decisions []*Decision) error {
	for _, decision := range decisions {
		data, err := json.Marshal(decision)
		if err != nil {
			return fmt.Errorf("failed to marshal decision: %w", err)
		}

		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		err = w.redisClient.XAdd(pctx, &redis.XAddArgs{
			Stream: w.resultStream,
			Values: map[string]interface{}{
				"data": string(data),
			},
		}).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to publish to stream: %w", err)
		}

		w.logger.Info("published decision",
			zap.String("decision_id", decision.DecisionID),
			zap.String("execution_id", decision.ExecutionID),
			zap.String("target_node", decision.TargetNode),
			zap.Bool("matched", decision.Matched),
		)
	}

	return nil
}

// publishError publishes an error event
func (w *Worker) publishError(ctx context.Context, request *WorkRequest, err error) {
	errorEvent := map[string]interface{}{
		"execution_id": request.ExecutionID,
		"node_id":      request.NodeID,
		"error":        err.Error(),
		"error_kind":   condition.KindOf(err),
		"timestamp":    time.Now().UTC(),
	}

	data, marshalErr := json.Marshal(errorEvent)
	if marshalErr != nil {
		w.logger.Error("failed to marshal error event", zap.Error(marshalErr))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	_, publishErr := w.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: w.errorStream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if publishErr != nil {
		w.logger.Error("failed to publish error event", zap.Error(publishErr))
	}
}

// acknowledgeMessage acknowledges a message from the stream
func (w *Worker) acknowledgeMessage(ctx context.Context, messageID string) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := w.redisClient.XAck(ctx, w.streamKey, w.consumerGroup, messageID).Err()
	if err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
