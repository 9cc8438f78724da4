package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mx-space/forms/internal/config"
	pkgcron "github.com/mx-space/forms/internal/pkg/cron"
)

// eventPruner deletes webhook delivery logs older than a cutoff.
type eventPruner interface {
	PruneEvents(ctx context.Context, before time.Time) (int64, error)
}

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, svcs services, cfg *config.AppConfig) {
	if svcs.webhooks != nil {
		sched.Register(pruneWebhookEventsJob(svcs.webhooks, cfg.Retention.WebhookEventsDays, time.Now))
	}
}

// pruneWebhookEventsJob keeps the last days of delivery logs. Zero days keeps
// everything.
func pruneWebhookEventsJob(p eventPruner, days int, now func() time.Time) pkgcron.Job {
	return pkgcron.Job{
		Name:        "prune_webhook_events",
		Description: fmt.Sprintf("Delete webhook delivery logs older than %d days", days),
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			if days <= 0 {
				return nil
			}
			cutoff := now().AddDate(0, 0, -days)
			if _, err := p.PruneEvents(ctx, cutoff); err != nil {
				return fmt.Errorf("prune webhook events: %w", err)
			}
			return nil
		},
	}
}
