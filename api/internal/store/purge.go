package store

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Purger deletes archived analyses that have not been refreshed within the
// retention period, on a cron schedule.
type Purger struct {
	repo      *AnalysisRepo
	retention time.Duration
	timeout   time.Duration
	log       *logrus.Logger
	c         *cron.Cron
}

// NewPurger registers the purge job; nothing runs until Start.
func NewPurger(repo *AnalysisRepo, schedule string, retention time.Duration, log *logrus.Logger) (*Purger, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be > 0, got %s", retention)
	}
	p := &Purger{
		repo:      repo,
		retention: retention,
		timeout:   time.Minute,
		log:       log,
		c:         cron.New(),
	}
	if _, err := p.c.AddFunc(schedule, func() { p.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("purge schedule %q: %w", schedule, err)
	}
	return p, nil
}

// RunOnce performs a single purge pass.
func (p *Purger) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	n, err := p.repo.PurgeOlderThan(ctx, p.retention)
	if err != nil {
		p.log.WithError(err).Warn("archive purge failed")
		return 0
	}
	if n > 0 {
		p.log.WithFields(logrus.Fields{"deleted": n, "retention": p.retention}).Info("archive purged")
	}
	return n
}

func (p *Purger) Start() { p.c.Start() }

// Stop waits for a running pass to finish.
func (p *Purger) Stop() { <-p.c.Stop().Done() }
