package carimport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"tealindex/internal/dispatch"
	"tealindex/internal/identity"
	"tealindex/internal/ingest"
	"tealindex/internal/metrics"
	"tealindex/internal/recordverify"
)

// pollTimeout is how long one blocking pop waits for a job before the
// worker loops back to check ctx and try again.
const pollTimeout = 10 * time.Second

// jobQueue is the subset of *Queue the worker loop needs. Tests supply
// an in-memory fake against this interface rather than a live Redis
// instance, the same function-field-mock idiom as database.MockStore,
// applied at the interface level since Queue's constructor needs a
// concrete *redis.Client.
type jobQueue interface {
	Pop(ctx context.Context, timeout time.Duration) (*Job, error)
	SetStatus(ctx context.Context, requestID string, status JobStatusRecord) error
}

// Worker pulls jobs off the queue one at a time and runs them to
// completion, mirroring cadet's own Redis poll loop: block for a job,
// flip its status to processing, run the import, flip to completed or
// failed.
//
// fetchCAR/walkRepo are function fields rather than direct calls so
// tests can substitute fixtures for the network fetch and the MST
// walk, the same function-field seam the teacher's database.MockStore
// uses.
type Worker struct {
	Queue    jobQueue
	Resolver *identity.Resolver
	Registry *dispatch.Registry
	Client   *http.Client
	Verifier recordverify.Verifier

	fetchCAR func(ctx context.Context, client *http.Client, pdsHost, did, since string) (*ParsedCAR, error)
	walkRepo func(ctx context.Context, parsed *ParsedCAR) (string, []Leaf, error)
}

func NewWorker(queue *Queue, resolver *identity.Resolver, registry *dispatch.Registry) *Worker {
	return &Worker{
		Queue:    queue,
		Resolver: resolver,
		Registry: registry,
		Client:   http.DefaultClient,
		Verifier: recordverify.Default,
		fetchCAR: FetchCAR,
		walkRepo: WalkRepo,
	}
}

// Run polls until ctx is cancelled. A Redis error backs off 5s before
// retrying, matching the reference worker's own retry delay; an empty
// poll window is not an error and loops immediately.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.Queue.Pop(ctx, pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("carimport: queue pop failed, retrying in 5s")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		w.runJob(ctx, *job)
	}
}

func (w *Worker) runJob(ctx context.Context, job Job) {
	started := time.Now().UTC()
	status := JobStatusRecord{
		Status:    JobProcessing,
		CreatedAt: job.CreatedAt,
		StartedAt: &started,
	}
	if err := w.Queue.SetStatus(ctx, job.RequestID, status); err != nil {
		log.Error().Err(err).Str("request_id", job.RequestID).Msg("carimport: failed to persist processing status")
	}

	progress, err := w.process(ctx, job)

	completed := time.Now().UTC()
	status.CompletedAt = &completed
	status.Progress = progress
	if err != nil {
		status.Status = JobFailed
		status.ErrorMessage = err.Error()
		metrics.ImportJobsTotal.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Str("request_id", job.RequestID).Msg("carimport: job failed")
	} else {
		status.Status = JobCompleted
		metrics.ImportJobsTotal.WithLabelValues("completed").Inc()
	}

	if err := w.Queue.SetStatus(ctx, job.RequestID, status); err != nil {
		log.Error().Err(err).Str("request_id", job.RequestID).Msg("carimport: failed to persist final status")
	}
}

// process runs one job end to end: resolve identity, fetch the CAR,
// walk its MST, and feed every fm.teal.alpha.* leaf through the same
// ingestors the live firehose path uses.
func (w *Worker) process(ctx context.Context, job Job) (*JobProgress, error) {
	progress := &JobProgress{Step: "resolving_identity"}

	resolved, err := w.Resolver.ResolveIdentity(ctx, job.Identity)
	if err != nil {
		return progress, fmt.Errorf("resolve identity: %w", err)
	}
	progress.UserDID = resolved.DID
	progress.PDSHost = resolved.PDS
	progress.Step = "fetching_car"

	parsed, err := w.fetchCAR(ctx, w.Client, resolved.PDS, resolved.DID, job.Since)
	if err != nil {
		return progress, fmt.Errorf("fetch car: %w", err)
	}
	progress.Step = "walking_mst"

	repoDID, leaves, err := w.walkRepo(ctx, parsed)
	if err != nil {
		return progress, fmt.Errorf("walk repo: %w", err)
	}
	blockCount := len(parsed.Blockstore.blocks)
	progress.BlocksProcessed = blockCount
	metrics.ImportBlocksProcessed.Observe(float64(blockCount))
	progress.Step = "ingesting_records"

	for _, leaf := range leaves {
		if err := ctx.Err(); err != nil {
			return progress, err
		}

		ing, ok := w.Registry.Lookup(leaf.Collection)
		if !ok {
			continue
		}

		blk, err := parsed.Blockstore.Get(ctx, leaf.ValueCID)
		if err != nil {
			log.Warn().Err(err).Str("collection", leaf.Collection).Str("rkey", leaf.RKey).Msg("carimport: missing block for leaf")
			continue
		}

		if err := w.Verifier.Verify(ctx, repoDID, leaf.ValueCID, blk.RawData()); err != nil {
			log.Warn().Err(err).Str("collection", leaf.Collection).Str("rkey", leaf.RKey).Msg("carimport: record failed verification")
			metrics.ImportRecordErrorsTotal.Inc()
			continue
		}

		recordJSON, err := DecodeRecordJSON(blk.RawData())
		if err != nil {
			log.Warn().Err(err).Str("collection", leaf.Collection).Str("rkey", leaf.RKey).Msg("carimport: failed to project record")
			metrics.ImportRecordErrorsTotal.Inc()
			continue
		}

		commit := ingest.Commit{
			DID:        repoDID,
			Collection: leaf.Collection,
			RKey:       leaf.RKey,
			Operation:  "create",
			CID:        leaf.ValueCID.String(),
			Record:     recordJSON,
		}
		if err := ing.Ingest(ctx, commit); err != nil {
			log.Warn().Err(err).Str("collection", leaf.Collection).Str("rkey", leaf.RKey).Msg("carimport: ingest failed")
			metrics.ImportRecordErrorsTotal.Inc()
			continue
		}
		metrics.ImportRecordsTotal.WithLabelValues(leaf.Collection).Inc()
	}

	progress.Step = "completed"
	return progress, nil
}
