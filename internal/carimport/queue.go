package carimport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyCarImportJobs   = "car_import_jobs"
	keyCarImportFailed = "car_import_failed"
)

func jobStatusKey(requestID string) string {
	return "car_import_status:" + requestID
}

// Queue is the Redis-backed job queue: a blocking list for pending
// jobs plus a per-job status key, matching the reference's
// car_import_jobs/car_import_status:{uuid} key layout.
type Queue struct {
	client *redis.Client
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue pushes a job onto the pending list and seeds its status.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("carimport: marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, keyCarImportJobs, data).Err(); err != nil {
		return fmt.Errorf("carimport: enqueue job: %w", err)
	}
	return q.SetStatus(ctx, job.RequestID, JobStatusRecord{
		Status:    JobPending,
		CreatedAt: job.CreatedAt,
	})
}

// Pop blocks up to timeout waiting for a job; a nil, nil return means
// the poll window elapsed with nothing queued — the worker loops back
// without treating that as an error.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BRPop(ctx, timeout, keyCarImportJobs).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("carimport: pop job: %w", err)
	}

	// BRPop returns [key, value]; result[1] is the job payload.
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("carimport: decode job: %w", err)
	}
	return &job, nil
}

// MarkFailed pushes a job's raw payload onto the dead-letter list, for
// jobs that failed to even parse.
func (q *Queue) MarkFailed(ctx context.Context, raw string) error {
	return q.client.RPush(ctx, keyCarImportFailed, raw).Err()
}

// SetStatus overwrites the status record for requestID; each write
// resets the key's 72h expiry.
func (q *Queue) SetStatus(ctx context.Context, requestID string, status JobStatusRecord) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("carimport: marshal status: %w", err)
	}
	return q.client.Set(ctx, jobStatusKey(requestID), data, 72*time.Hour).Err()
}

// GetStatus reads back a job's current status.
func (q *Queue) GetStatus(ctx context.Context, requestID string) (JobStatusRecord, error) {
	data, err := q.client.Get(ctx, jobStatusKey(requestID)).Bytes()
	if err != nil {
		return JobStatusRecord{}, fmt.Errorf("carimport: get status: %w", err)
	}
	var status JobStatusRecord
	if err := json.Unmarshal(data, &status); err != nil {
		return JobStatusRecord{}, fmt.Errorf("carimport: decode status: %w", err)
	}
	return status, nil
}
