// Package scheduler drives the live-refresh tick. A cron instance runs one
// job at a fixed interval; toggling the live flag starts and stops it.
package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the work executed on every tick, typically the dashboard render
// pass. Renders are cache-checked, so most ticks are cheap.
type Job func()

// Refresher owns the cron instance behind the live flag.
type Refresher struct {
	mu       sync.Mutex
	interval time.Duration
	job      Job
	cron     *cron.Cron
}

// New creates a stopped Refresher. Intervals below one second are floored.
func New(interval time.Duration, job Job) *Refresher {
	if interval < time.Second {
		interval = time.Second
	}
	return &Refresher{interval: interval, job: job}
}

// Start schedules the job. Calling Start on a running Refresher is a no-op.
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", r.interval)
	if _, err := c.AddFunc(spec, r.job); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	c.Start()
	r.cron = c
	log.Printf("[INFO] live refresh started (%s)", spec)
	return nil
}

// Stop halts the tick, waiting for an in-flight run to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	log.Println("[INFO] live refresh stopped")
}

// Running reports whether the tick is scheduled.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cron != nil
}

// SetInterval changes the tick interval, restarting the cron if running.
func (r *Refresher) SetInterval(d time.Duration) {
	if d < time.Second {
		d = time.Second
	}
	r.mu.Lock()
	running := r.cron != nil
	r.interval = d
	r.mu.Unlock()
	if running {
		r.Stop()
		if err := r.Start(); err != nil {
			log.Printf("[ERROR] restart refresh: %v", err)
		}
	}
}

// Apply reconciles the running state with the live flag.
func (r *Refresher) Apply(live bool) error {
	if live {
		return r.Start()
	}
	r.Stop()
	return nil
}
