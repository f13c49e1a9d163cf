package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/podlabs/podmint/internal/pod"
	"github.com/redis/go-redis/v9"
)

const (
	// StreamEvaluations carries finalized evaluations from the evaluator
	// boundary to allocation workers.
	StreamEvaluations = "pod_evaluations"
	// StreamAllocations carries committed allocation summaries to the
	// downstream registration consumer. The core never blocks on it.
	StreamAllocations = "pod_allocations"

	// GroupAllocators is the consumer group for allocation workers.
	GroupAllocators = "allocator_pool"
	// GroupRegistrars is the consumer group for the registration process.
	GroupRegistrars = "registrar_pool"
)

// Queue manages the Redis streams at the core's intake and emission
// boundaries.
type Queue struct {
	client *redis.Client
}

// New creates a Queue from a Redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// ConnectRedis creates a Redis client from a URL.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// EnsureStreams creates the consumer groups if they don't exist.
func (q *Queue) EnsureStreams(ctx context.Context) error {
	for _, pair := range []struct {
		stream, group string
	}{
		{StreamEvaluations, GroupAllocators},
		{StreamAllocations, GroupRegistrars},
	} {
		err := q.client.XGroupCreateMkStream(ctx, pair.stream, pair.group, "0").Err()
		if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("create group %s on %s: %w", pair.group, pair.stream, err)
		}
	}
	return nil
}

// PushEvaluation adds a finalized evaluation to the intake stream.
func (q *Queue) PushEvaluation(ctx context.Context, sub pod.Submission) (string, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("marshal submission: %w", err)
	}
	result, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamEvaluations,
		Values: map[string]any{
			"submission_hash": sub.Score.SubmissionHash,
			"contributor":     sub.Score.Contributor,
			"payload":         string(payload),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("push evaluation: %w", err)
	}
	return result, nil
}

// ReadEvaluation reads one evaluation from the intake stream (blocking).
func (q *Queue) ReadEvaluation(ctx context.Context, consumer string) (*pod.Submission, string, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    GroupAllocators,
		Consumer: consumer,
		Streams:  []string{StreamEvaluations, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		return nil, "", fmt.Errorf("read evaluation: %w", err)
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			payload := getString(msg.Values, "payload")
			var sub pod.Submission
			if err := json.Unmarshal([]byte(payload), &sub); err != nil {
				return nil, msg.ID, fmt.Errorf("unmarshal submission %s: %w", msg.ID, err)
			}
			return &sub, msg.ID, nil
		}
	}
	return nil, "", fmt.Errorf("no messages")
}

// AckEvaluation acknowledges an intake message.
func (q *Queue) AckEvaluation(ctx context.Context, msgID string) error {
	return q.client.XAck(ctx, StreamEvaluations, GroupAllocators, msgID).Err()
}

// PushSummary emits an allocation summary for the registration consumer.
func (q *Queue) PushSummary(ctx context.Context, summary pod.AllocationSummary) (string, error) {
	payload, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	result, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamAllocations,
		Values: map[string]any{
			"submission_hash": summary.SubmissionHash,
			"epoch":           string(summary.Epoch),
			"tier":            string(summary.Tier),
			"created_at":      summary.CreatedAt.Format(time.RFC3339),
			"payload":         string(payload),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("push summary: %w", err)
	}
	return result, nil
}

// Status returns pending message counts for both streams.
func (q *Queue) Status(ctx context.Context) (evaluations, allocations int64, err error) {
	evalLen, err := q.client.XLen(ctx, StreamEvaluations).Result()
	if err != nil {
		return 0, 0, err
	}
	allocLen, err := q.client.XLen(ctx, StreamAllocations).Result()
	if err != nil {
		return 0, 0, err
	}
	return evalLen, allocLen, nil
}

func getString(values map[string]any, key string) string {
	if v, ok := values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
