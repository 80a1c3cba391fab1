// Package cron runs housekeeping jobs on cron expressions.
package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/sipeed/picotts/pkg/logger"
)

// JobHandler does one run of a job. now is the scheduled tick.
type JobHandler func(ctx context.Context, now time.Time) error

type job struct {
	name     string
	schedule string
	handler  JobHandler
	next     time.Time
}

// JobStatus describes a registered job.
type JobStatus struct {
	Name     string
	Schedule string
	NextRun  time.Time
}

// CronService runs registered jobs in a single goroutine. A job that is
// still running when its next tick arrives delays the following jobs; the
// jobs here are short filesystem sweeps.
type CronService struct {
	mu      sync.Mutex
	jobs    map[string]*job
	gron    *gronx.Gronx
	now     func() time.Time
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	wake    chan struct{}
}

func NewCronService() *CronService {
	return &CronService{
		jobs: make(map[string]*job),
		gron: gronx.New(),
		now:  time.Now,
		wake: make(chan struct{}, 1),
	}
}

// ValidateSchedule reports whether expr is a cron expression gronx accepts.
func ValidateSchedule(expr string) error {
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q", expr)
	}
	return nil
}

// AddJob registers or replaces a job.
func (cs *CronService) AddJob(name, schedule string, handler JobHandler) error {
	if !cs.gron.IsValid(schedule) {
		return fmt.Errorf("job %s: invalid cron expression %q", name, schedule)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	next, err := gronx.NextTickAfter(schedule, cs.now(), false)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	cs.jobs[name] = &job{name: name, schedule: schedule, handler: handler, next: next}

	select {
	case cs.wake <- struct{}{}:
	default:
	}
	return nil
}

// ListJobs returns the registered jobs sorted by name.
func (cs *CronService) ListJobs() []JobStatus {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]JobStatus, 0, len(cs.jobs))
	for _, j := range cs.jobs {
		out = append(out, JobStatus{Name: j.name, Schedule: j.schedule, NextRun: j.next})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

func (cs *CronService) Start(ctx context.Context) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.running {
		return fmt.Errorf("cron service already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	cs.cancel = cancel
	cs.done = make(chan struct{})
	cs.running = true

	go cs.loop(ctx, cs.done)
	logger.InfoCF("cron", "Cron service started", map[string]any{
		"jobs": len(cs.jobs),
	})
	return nil
}

// Stop cancels the loop and waits for a running job to return.
func (cs *CronService) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	cancel, done := cs.cancel, cs.done
	cs.mu.Unlock()

	cancel()
	<-done
	logger.InfoC("cron", "Cron service stopped")
}

func (cs *CronService) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		wait := time.Minute
		if next, ok := cs.nextRun(); ok {
			wait = next.Sub(cs.now())
		}
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-cs.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		cs.RunDue(ctx, cs.now())
	}
}

func (cs *CronService) nextRun() (time.Time, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	var earliest time.Time
	for _, j := range cs.jobs {
		if earliest.IsZero() || j.next.Before(earliest) {
			earliest = j.next
		}
	}
	return earliest, !earliest.IsZero()
}

// RunDue runs every job whose next tick is at or before now and schedules
// its following tick. It returns the names of the jobs it ran.
func (cs *CronService) RunDue(ctx context.Context, now time.Time) []string {
	cs.mu.Lock()
	var due []*job
	for _, j := range cs.jobs {
		if !j.next.After(now) {
			due = append(due, j)
			next, err := gronx.NextTickAfter(j.schedule, now, false)
			if err != nil {
				logger.ErrorCF("cron", "Failed to schedule next run", map[string]any{
					"job":   j.name,
					"error": err.Error(),
				})
				delete(cs.jobs, j.name)
				continue
			}
			j.next = next
		}
	}
	cs.mu.Unlock()

	sort.Slice(due, func(i, k int) bool { return due[i].name < due[k].name })
	ran := make([]string, 0, len(due))
	for _, j := range due {
		start := time.Now()
		err := j.handler(ctx, now)
		fields := map[string]any{
			"job":         j.name,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if err != nil {
			fields["error"] = err.Error()
			logger.WarnCF("cron", "Job failed", fields)
		} else {
			logger.DebugCF("cron", "Job finished", fields)
		}
		ran = append(ran, j.name)
	}
	return ran
}
