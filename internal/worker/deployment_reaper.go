// Package worker contains background maintenance loops that run alongside
// the API server.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/stampworks/sigforge/internal/domain"
	"github.com/stampworks/sigforge/internal/pkg/distlock"
	"github.com/stampworks/sigforge/internal/pkg/logger"
)

const (
	// DefaultReapInterval is how often we scan for stuck deployments.
	DefaultReapInterval = 5 * time.Minute

	// DefaultStuckAge is how long a deployment may sit in running state
	// before we assume the server that owned it crashed mid-run.
	DefaultStuckAge = 2 * time.Hour
)

// ReaperRepository is the slice of the deployment store the reaper needs.
// Implemented by postgres.DeploymentRepo.
type ReaperRepository interface {
	ListStuckRunning(ctx context.Context, cutoff time.Time) ([]domain.Deployment, error)
	CountHistoryOutcomes(ctx context.Context, deploymentID string) (successful, failed int, err error)
	FinalizeDeployment(ctx context.Context, id string, status domain.DeploymentStatus, successful, failed int) error
}

// DeploymentReaper finalizes deployments orphaned in running state by a
// server crash. The final counters are reconstructed from the history rows
// that did land; targets the crashed run never attempted count as failed.
//
// A distributed lock ensures only one instance reaps at a time, so two
// servers never finalize the same deployment concurrently.
type DeploymentReaper struct {
	repo     ReaperRepository
	lock     distlock.DistLock
	interval time.Duration
	stuckAge time.Duration
}

// NewDeploymentReaper creates a reaper with the given timing. Zero values
// fall back to defaults.
func NewDeploymentReaper(repo ReaperRepository, lock distlock.DistLock, interval, stuckAge time.Duration) *DeploymentReaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if stuckAge <= 0 {
		stuckAge = DefaultStuckAge
	}
	return &DeploymentReaper{repo: repo, lock: lock, interval: interval, stuckAge: stuckAge}
}

// Start begins the reap loop. It blocks until ctx is cancelled.
func (r *DeploymentReaper) Start(ctx context.Context) {
	log.Printf("[DeploymentReaper] Starting (interval=%s, stuck_age=%s)", r.interval, r.stuckAge)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[DeploymentReaper] Stopping")
			return
		case <-ticker.C:
			r.reapOnce(ctx)
		}
	}
}

// reapOnce takes the lock and finalizes every stuck deployment it finds.
func (r *DeploymentReaper) reapOnce(ctx context.Context) {
	if r.lock != nil {
		acquired, err := r.lock.Acquire(ctx)
		if err != nil {
			logger.Warn("reaper lock acquire failed", "error", err.Error())
			return
		}
		if !acquired {
			return // another instance is reaping
		}
		defer func() {
			if err := r.lock.Release(ctx); err != nil {
				logger.Warn("reaper lock release failed", "error", err.Error())
			}
		}()
	}

	n, err := r.ReapStuck(ctx)
	if err != nil {
		logger.Error("reap scan failed", "error", err.Error())
		return
	}
	if n > 0 {
		log.Printf("[DeploymentReaper] Finalized %d stuck deployment(s)", n)
	}
}

// ReapStuck finalizes all deployments stuck past the stuck-age cutoff and
// returns how many were finalized.
func (r *DeploymentReaper) ReapStuck(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.stuckAge)
	stuck, err := r.repo.ListStuckRunning(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, dep := range stuck {
		successful, failed, err := r.repo.CountHistoryOutcomes(ctx, dep.ID)
		if err != nil {
			logger.Error("history count failed for stuck deployment",
				"deployment_id", dep.ID, "error", err.Error())
			continue
		}

		// Targets the crashed run never got to are failures: no signature
		// was written and nobody is going to retry them.
		unattempted := dep.TotalUsers - successful - failed
		if unattempted > 0 {
			failed += unattempted
		}

		status := domain.DeploymentCompleted
		if successful == 0 {
			status = domain.DeploymentFailed
		}
		if err := r.repo.FinalizeDeployment(ctx, dep.ID, status, successful, failed); err != nil {
			logger.Error("finalize failed for stuck deployment",
				"deployment_id", dep.ID, "error", err.Error())
			continue
		}
		logger.Info("finalized stuck deployment",
			"deployment_id", dep.ID, "status", string(status),
			"successful", successful, "failed", failed)
		reaped++
	}
	return reaped, nil
}
