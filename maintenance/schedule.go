package maintenance

import (
	"context"
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/jobstore"
)

// scheduleParser supports standard 5-field cron and descriptors like
// "@every 30s" or "@hourly".
var scheduleParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	s, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %w", jobstore.ErrInvalidConfig, expr, err)
	}
	return s, nil
}

// Every returns a schedule firing at a fixed interval. Intervals below one
// second are rounded up to one second.
func Every(d time.Duration) cronlib.Schedule {
	return cronlib.Every(d)
}

// runScheduled calls pass once, then again at every activation of
// schedule, until ctx is done. Pass errors are left to pass to report.
func runScheduled(ctx context.Context, schedule cronlib.Schedule, now func() time.Time, pass func(context.Context)) error {
	for {
		pass(ctx)

		next := schedule.Next(now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
