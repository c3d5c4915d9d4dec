// Package scheduler runs periodic maintenance jobs on a cron.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron *cron.Cron
}

func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
	}
}

// Schedule registers job under a six-field cron expression (seconds first) or a descriptor like "@hourly".
func (s *Scheduler) Schedule(spec string, job func()) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, job)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// TokenPurger clears verification and restoration tokens issued before a cutoff.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

// PurgeTokens clears tokens older than ttl and returns how many accounts were touched.
func PurgeTokens(ctx context.Context, p TokenPurger, ttl time.Duration, now time.Time) (int64, error) {
	n, err := p.PurgeExpiredTokens(ctx, now.Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	return n, nil
}

// PurgeTokensJob adapts PurgeTokens to a cron job with its own timeout.
func PurgeTokensJob(p TokenPurger, ttl time.Duration, now func() time.Time) func() {
	if now == nil {
		now = time.Now
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := PurgeTokens(ctx, p, ttl, now().UTC())
		if err != nil {
			log.Printf("Token purge failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Purged expired tokens for %d users", n)
		}
	}
}
