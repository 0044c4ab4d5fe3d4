// Package status publishes live per-deployment progress counters to Redis so
// the API can show a deployment advancing before it finalizes in Postgres.
//
// Progress is best-effort: every Redis failure is logged and swallowed,
// because losing a progress update must never cost a mailbox its signature.
package status

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stampworks/sigforge/internal/domain"
	"github.com/stampworks/sigforge/internal/pkg/logger"
)

const keyPrefix = "sigforge:deploy:"

// Progress is a point-in-time snapshot of a running deployment.
type Progress struct {
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Status     string `json:"status"`
}

// Tracker implements deployment.ProgressTracker over Redis hashes.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTracker creates a progress tracker. ttl bounds how long finished
// progress hashes linger for late pollers.
func NewTracker(client *redis.Client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tracker{client: client, ttl: ttl}
}

// Init seeds the progress hash for a new deployment.
func (t *Tracker) Init(ctx context.Context, deploymentID string, total int) {
	key := keyPrefix + deploymentID
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key,
		"total", total,
		"successful", 0,
		"failed", 0,
		"status", string(domain.DeploymentRunning),
	)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("progress init failed", "deployment_id", deploymentID, "error", err.Error())
	}
}

// Success advances the successful counter.
func (t *Tracker) Success(ctx context.Context, deploymentID string) {
	t.incr(ctx, deploymentID, "successful")
}

// Failure advances the failed counter.
func (t *Tracker) Failure(ctx context.Context, deploymentID string) {
	t.incr(ctx, deploymentID, "failed")
}

func (t *Tracker) incr(ctx context.Context, deploymentID, field string) {
	if err := t.client.HIncrBy(ctx, keyPrefix+deploymentID, field, 1).Err(); err != nil {
		logger.Warn("progress increment failed",
			"deployment_id", deploymentID, "field", field, "error", err.Error())
	}
}

// Finish stamps the final status onto the hash.
func (t *Tracker) Finish(ctx context.Context, deploymentID string, status domain.DeploymentStatus) {
	if err := t.client.HSet(ctx, keyPrefix+deploymentID, "status", string(status)).Err(); err != nil {
		logger.Warn("progress finish failed", "deployment_id", deploymentID, "error", err.Error())
	}
}

// Get returns the live snapshot for a deployment. ok is false when no
// progress hash exists (expired or never started on this cluster).
func (t *Tracker) Get(ctx context.Context, deploymentID string) (Progress, bool, error) {
	vals, err := t.client.HGetAll(ctx, keyPrefix+deploymentID).Result()
	if err != nil {
		return Progress{}, false, err
	}
	if len(vals) == 0 {
		return Progress{}, false, nil
	}
	return Progress{
		Total:      atoi(vals["total"]),
		Successful: atoi(vals["successful"]),
		Failed:     atoi(vals["failed"]),
		Status:     vals["status"],
	}, true, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
