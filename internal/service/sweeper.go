package service

import (
	"context"
	"log"
	"time"

	"github.com/feastly/dispatch/internal/metrics"
	"github.com/feastly/dispatch/internal/repository"
)

const sweepBatchSize = 500

// Sweeper is the background reconciler that moves overdue SENT offers to
// EXPIRED. Every transition is guarded on state = SENT, so running next to
// concurrent accepts is safe: whichever write lands first wins and the other
// is a no-op.
type Sweeper struct {
	offerRepo repository.OfferRepository
	interval  time.Duration
}

func NewSweeper(offerRepo repository.OfferRepository, interval time.Duration) *Sweeper {
	return &Sweeper{
		offerRepo: offerRepo,
		interval:  interval,
	}
}

// Run blocks, sweeping on each tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				log.Printf("expiry sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("expiry sweep expired %d offers", n)
			}
		}
	}
}

// SweepOnce expires every overdue SENT offer it can find. Offers are expired
// one at a time so a failure on one never aborts the rest of the batch.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	overdue, err := s.offerRepo.ListOverdue(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, offer := range overdue {
		ok, err := s.offerRepo.Expire(ctx, offer.ID, time.Now())
		if err != nil {
			log.Printf("failed to expire offer %s: %v", offer.ID, err)
			continue
		}
		if ok {
			expired++
		}
	}

	if expired > 0 {
		metrics.OffersExpiredTotal.WithLabelValues("sweep").Add(float64(expired))
	}
	return expired, nil
}
