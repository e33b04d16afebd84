package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adonhq/assessment-backend/internal/blob"
	"github.com/adonhq/assessment-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// BlobCleanupJob names an artifact to delete.
type BlobCleanupJob struct {
	Namespace  string    `json:"namespace"`
	Name       string    `json:"name"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// CleanupQueue pushes BlobCleanupJobs onto the cleanup queue.
type CleanupQueue struct {
	rdb *redis.Client
}

// NewCleanupQueue creates a new CleanupQueue.
func NewCleanupQueue(rdb *redis.Client) *CleanupQueue {
	return &CleanupQueue{rdb: rdb}
}

// EnqueueBlobCleanup schedules namespace/name for deletion.
func (q *CleanupQueue) EnqueueBlobCleanup(ctx context.Context, namespace, name string) error {
	payload, err := json.Marshal(BlobCleanupJob{Namespace: namespace, Name: name, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.BlobCleanupQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue blob cleanup: %w", err)
	}
	return nil
}

// BlobCleanupWorker consumes blob_cleanup_queue and deletes artifacts whose
// result row was never written.
type BlobCleanupWorker struct {
	rdb        *redis.Client
	store      blob.Store
	log        zerolog.Logger
	retryDelay time.Duration
}

// NewBlobCleanupWorker creates a new BlobCleanupWorker.
func NewBlobCleanupWorker(rdb *redis.Client, store blob.Store, log zerolog.Logger) *BlobCleanupWorker {
	return &BlobCleanupWorker{
		rdb:        rdb,
		store:      store,
		log:        log.With().Str("component", "blob_cleanup_worker").Logger(),
		retryDelay: 5 * time.Second,
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *BlobCleanupWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *BlobCleanupWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.BlobCleanupQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			time.Sleep(w.retryDelay)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	job, err := decodeJob(result[1])
	if err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error, dropping job")
		return
	}

	if err := w.delete(ctx, job); err != nil {
		w.log.Error().Err(err).
			Str("blob_key", job.Namespace+"/"+job.Name).
			Msg("Delete error, retrying later")
		w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.BlobCleanupQueue, result[1])
		time.Sleep(w.retryDelay)
		return
	}
	w.log.Info().Str("blob_key", job.Namespace+"/"+job.Name).Msg("Orphaned artifact deleted")
}

func (w *BlobCleanupWorker) delete(ctx context.Context, job *BlobCleanupJob) error {
	dctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return w.store.Delete(dctx, job.Namespace, job.Name)
}

// drain processes all remaining jobs before shutdown.
func (w *BlobCleanupWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.BlobCleanupQueue).Result()
		if err != nil {
			break
		}

		job, err := decodeJob(raw)
		if err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.delete(ctx, job); err != nil {
			w.log.Error().Err(err).Msg("Drain delete error")
			w.rdb.RPush(ctx, config.WorkerKey.BlobCleanupQueue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining jobs")
	}
}

func decodeJob(raw string) (*BlobCleanupJob, error) {
	var job BlobCleanupJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, err
	}
	if job.Namespace == "" || job.Name == "" {
		return nil, fmt.Errorf("incomplete job %q", raw)
	}
	return &job, nil
}
