package reconciler

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/ManuelReschke/JobFuchs/app/models"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/env"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/notify"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/subscription"
)

const (
	defaultSchedule   = "@hourly"
	defaultBatchLimit = 500

	// Trials expiring within this window get a one-time reminder.
	reminderWindow = 3 * 24 * time.Hour
)

// Expirer is the slice of the state machine the sweep drives.
type Expirer interface {
	Expire(userID uint, now time.Time) (*models.Subscription, bool, error)
}

// SweepResult summarizes one reconciler run.
type SweepResult struct {
	Scanned       int
	Downgraded    int
	Failed        int
	AddonsExpired int64
	RemindersSent int
}

// Reconciler downgrades lapsed subscriptions on a schedule. Each account is
// processed independently; one failing account never blocks the rest, and
// because Expire is a no-op on already-downgraded rows the sweep can run
// twice over the same backlog without double effects.
type Reconciler struct {
	repos      *repository.Repositories
	expirer    Expirer
	notifier   subscription.Notifier
	schedule   string
	batchLimit int

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// New creates a reconciler with an explicit schedule and batch limit.
func New(repos *repository.Repositories, expirer Expirer, notifier subscription.Notifier, schedule string, batchLimit int) *Reconciler {
	if schedule == "" {
		schedule = defaultSchedule
	}
	if batchLimit <= 0 {
		batchLimit = defaultBatchLimit
	}
	return &Reconciler{
		repos:      repos,
		expirer:    expirer,
		notifier:   notifier,
		schedule:   schedule,
		batchLimit: batchLimit,
	}
}

// NewFromEnv reads RECONCILER_SCHEDULE and RECONCILER_BATCH_LIMIT.
func NewFromEnv(repos *repository.Repositories, expirer Expirer, notifier subscription.Notifier) *Reconciler {
	limit, _ := strconv.Atoi(env.GetEnv("RECONCILER_BATCH_LIMIT", ""))
	return New(repos, expirer, notifier, env.GetEnv("RECONCILER_SCHEDULE", defaultSchedule), limit)
}

// Start schedules the sweep. Safe to call once; Stop shuts it down.
func (r *Reconciler) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() {
		result := r.RunOnce(time.Now())
		log.Infof("[Reconciler] sweep done: scanned=%d downgraded=%d failed=%d addons=%d reminders=%d",
			result.Scanned, result.Downgraded, result.Failed, result.AddonsExpired, result.RemindersSent)
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", r.schedule, err)
	}
	c.Start()

	r.cron = c
	r.running = true
	log.Infof("[Reconciler] started, schedule %s", r.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.cron = nil
	r.running = false
	log.Info("[Reconciler] stopped")
}

// RunOnce executes a single sweep at the given time.
func (r *Reconciler) RunOnce(now time.Time) SweepResult {
	var result SweepResult

	lapsed, err := r.repos.Subscription.ListLapsed(now, r.batchLimit)
	if err != nil {
		log.Errorf("[Reconciler] list lapsed: %v", err)
		result.Failed++
	} else {
		result.Scanned = len(lapsed)
		for _, sub := range lapsed {
			_, changed, err := r.expirer.Expire(sub.UserID, now)
			if err != nil {
				log.Errorf("[Reconciler] expire user %d: %v", sub.UserID, err)
				result.Failed++
				continue
			}
			if changed {
				result.Downgraded++
			}
		}
	}

	expired, err := r.repos.Addon.ExpireLapsed(now)
	if err != nil {
		log.Errorf("[Reconciler] expire addon grants: %v", err)
		result.Failed++
	} else {
		result.AddonsExpired = expired
	}

	result.RemindersSent = r.sendTrialReminders(now, &result)
	return result
}

// sendTrialReminders notifies trials nearing expiry, once per trial.
func (r *Reconciler) sendTrialReminders(now time.Time, result *SweepResult) int {
	expiring, err := r.repos.Subscription.ListExpiringTrials(now, reminderWindow, r.batchLimit)
	if err != nil {
		log.Errorf("[Reconciler] list expiring trials: %v", err)
		result.Failed++
		return 0
	}

	sent := 0
	for _, sub := range expiring {
		engagement, err := r.repos.TrialEngagement.GetByUserID(sub.UserID)
		if err != nil {
			log.Errorf("[Reconciler] engagement for user %d: %v", sub.UserID, err)
			result.Failed++
			continue
		}
		if engagement.ReminderSentAt != nil {
			continue
		}
		if err := r.repos.TrialEngagement.MarkReminderSent(sub.UserID, now); err != nil {
			log.Errorf("[Reconciler] mark reminder for user %d: %v", sub.UserID, err)
			result.Failed++
			continue
		}
		if r.notifier != nil {
			r.notifier.Enqueue(notify.Message{
				Kind:        notify.KindTrialReminder,
				UserID:      sub.UserID,
				Title:       "Dein Testzeitraum endet bald",
				Body:        fmt.Sprintf("Dein Testzeitraum endet am %s. Jetzt upgraden und deine Credits behalten.", sub.ExpiresAt.Format("02.01.2006")),
				ReferenceID: sub.ID,
			})
		}
		sent++
	}
	return sent
}
