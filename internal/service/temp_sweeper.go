package service

import (
	"context"
	"fmt"
	"time"

	"github.com/postdesk/internal/logger"
)

// DefaultTempImageTTL 是临时图片在被清理前保留的时长
const DefaultTempImageTTL = 12 * time.Hour

// SweepResult summarizes one temp sweep.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// TempSweeper removes editor uploads that were never claimed by a post.
type TempSweeper struct {
	blobs *BlobRelocator
	now   func() time.Time
}

// NewTempSweeper creates a TempSweeper.
func NewTempSweeper(blobs *BlobRelocator) *TempSweeper {
	return &TempSweeper{blobs: blobs, now: time.Now}
}

// Sweep deletes every temp blob uploaded more than olderThan ago. Blobs
// without a known upload time are kept.
func (s *TempSweeper) Sweep(ctx context.Context, olderThan time.Duration) (*SweepResult, error) {
	if olderThan <= 0 {
		olderThan = DefaultTempImageTTL
	}

	objects, err := s.blobs.Store().List(ctx, TempFolder+"/")
	if err != nil {
		return nil, fmt.Errorf("%w: list temp images: %v", ErrStorage, err)
	}

	cutoff := s.now().Add(-olderThan)
	expired := make([]string, 0, len(objects))
	for _, obj := range objects {
		if obj.UploadedAt.IsZero() || obj.UploadedAt.After(cutoff) {
			continue
		}
		expired = append(expired, obj.Key)
	}

	failed := s.blobs.DeleteKeys(ctx, expired)
	result := &SweepResult{Scanned: len(objects), Deleted: len(expired) - failed, Failed: failed}

	logger.Get().Info().
		Int("scanned", result.Scanned).
		Int("deleted", result.Deleted).
		Int("failed", result.Failed).
		Dur("older_than", olderThan).
		Msg("temp image sweep finished")
	return result, nil
}

// Run sweeps every interval until ctx is done.
func (s *TempSweeper) Run(ctx context.Context, interval, olderThan time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, olderThan); err != nil {
				logger.Get().Warn().Err(err).Msg("temp image sweep failed")
			}
		}
	}
}
