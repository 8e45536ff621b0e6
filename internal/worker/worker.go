// Package worker verifies freshly uploaded artifacts in the background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glanburn/music-manager/internal/blob"
	"github.com/glanburn/music-manager/internal/model"
)

// ArtifactClaimer provides atomic claim and status update operations.
type ArtifactClaimer interface {
	ClaimNextUploaded(ctx context.Context) (*model.Artifact, error)
	UpdateArtifactStatus(ctx context.Context, id, newStatus string, errorInfo *string) error
}

// BlobReader reads stored blobs for verification.
type BlobReader interface {
	Get(id string) ([]byte, error)
}

// TokenPurger drops expired download grants.
type TokenPurger interface {
	Purge() int
}

// Worker polls for UPLOADED artifacts, re-reads their blobs and checks the
// stored checksum, moving them to READY or CORRUPT. Idle ticks purge
// expired download tokens.
type Worker struct {
	claimer  ArtifactClaimer
	blobs    BlobReader
	tokens   TokenPurger
	interval time.Duration
}

// New creates a new Worker.
func New(claimer ArtifactClaimer, blobs BlobReader, tokens TokenPurger, interval time.Duration) *Worker {
	return &Worker{claimer: claimer, blobs: blobs, tokens: tokens, interval: interval}
}

// Start begins the polling loop. It blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("verification worker started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("verification worker stopped")
			return
		default:
		}

		worked, err := w.runOnce(ctx)
		if err != nil {
			slog.Error("worker claim error", "error", err)
			w.sleep(ctx)
			continue
		}
		if !worked {
			if w.tokens != nil {
				if n := w.tokens.Purge(); n > 0 {
					slog.Debug("purged expired download tokens", "count", n)
				}
			}
			w.sleep(ctx)
		}
	}
}

// runOnce claims and verifies at most one artifact. It reports whether an
// artifact was claimed.
func (w *Worker) runOnce(ctx context.Context) (bool, error) {
	art, err := w.claimer.ClaimNextUploaded(ctx)
	if err != nil {
		return false, err
	}
	if art == nil {
		return false, nil
	}

	slog.Info("verifying artifact", "artifact_id", art.ID, "display_name", art.DisplayName)
	if err := w.verify(art); err != nil {
		slog.Warn("artifact failed verification", "artifact_id", art.ID, "error", err)
		errInfo := model.ErrorInfo{
			Stage:    "verify",
			Message:  err.Error(),
			FailedAt: time.Now().UTC().Format(time.RFC3339),
		}.ToJSON()
		if sErr := w.claimer.UpdateArtifactStatus(ctx, art.ID, model.StatusCorrupt, &errInfo); sErr != nil {
			slog.Error("failed to set CORRUPT status", "artifact_id", art.ID, "error", sErr)
		}
		return true, nil
	}

	if err := w.claimer.UpdateArtifactStatus(ctx, art.ID, model.StatusReady, nil); err != nil {
		slog.Error("failed to set READY status", "artifact_id", art.ID, "error", err)
	} else {
		slog.Info("artifact is now READY", "artifact_id", art.ID)
	}
	return true, nil
}

// verify re-reads the blob and compares size and checksum against the
// values recorded at upload time.
func (w *Worker) verify(art *model.Artifact) error {
	data, err := w.blobs.Get(art.StorageID)
	if err != nil {
		return err
	}
	if int64(len(data)) != art.SizeBytes {
		return fmt.Errorf("stored blob is %d bytes, record says %d", len(data), art.SizeBytes)
	}
	if blob.Checksum(data) != art.Checksum {
		return errors.New("stored blob does not match recorded checksum")
	}
	return nil
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.interval):
	}
}
