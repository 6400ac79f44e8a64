package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type CronScheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	ctx     context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	entryID, err := c.cron.AddFunc(spec, c.wrap(job, spec))
	if err != nil {
		log.Error().Err(err).Str("job", job.Name()).Str("spec", spec).Msg("Failed to schedule job")
		return err
	}
	c.entries[job.Name()] = entryID
	log.Info().Str("job", job.Name()).Str("spec", spec).Msg("Job scheduled")
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	c.ctx = ctx
	c.cron.Start()
}

// Stop waits for running jobs to finish.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

// wrap skips a tick while the previous run of the same job is still going.
func (c *CronScheduler) wrap(job Job, spec string) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			log.Info().Str("job", job.Name()).Msg("Job skipped: still running")
			return
		}
		defer running.Store(false)
		c.runJob(job, spec)
	}
}

func (c *CronScheduler) runJob(job Job, spec string) {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		log.Error().Err(err).Str("job", job.Name()).Str("spec", spec).Dur("duration", time.Since(start)).Msg("Job failed")
		return
	}
	log.Debug().Str("job", job.Name()).Dur("duration", time.Since(start)).Msg("Job finished")
}
