package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/models"
	"github.com/signage-server/signage-server-pro/internal/registry"
)

// ResolveActiveContent picks the content a unit should show at the given
// instant. Among matching active schedules the highest priority wins;
// ties break to the most recently updated schedule so the result is
// deterministic. Empty return means no schedule applies.
func ResolveActiveContent(schedules []*models.LayoutSchedule, clientID, group string, at time.Time) string {
	var winner *models.LayoutSchedule

	for _, s := range schedules {
		if !s.Active {
			continue
		}
		if !s.Targets(clientID, group) {
			continue
		}
		if !s.InValidityRange(at) {
			continue
		}
		if !s.MatchesDay(at.Weekday()) {
			continue
		}
		if !s.ContainsTime(at) {
			continue
		}

		if winner == nil ||
			s.Priority > winner.Priority ||
			(s.Priority == winner.Priority && s.UpdatedAt.After(winner.UpdatedAt)) {
			winner = s
		}
	}

	if winner == nil {
		return ""
	}
	return winner.ContentID
}

// ScheduleStore lists the schedules the runner evaluates
type ScheduleStore interface {
	ListSchedules(ctx context.Context) ([]*models.LayoutSchedule, error)
}

// ContentPusher applies a resolved assignment to a unit
type ContentPusher interface {
	Push(ctx context.Context, clientID, contentID string) error
}

// Runner periodically evaluates the schedule table against the fleet and
// pushes content to units whose winning schedule differs from what they
// are assigned
type Runner struct {
	store    ScheduleStore
	registry *registry.Registry
	pusher   ContentPusher
	interval time.Duration
}

// NewRunner creates a schedule runner
func NewRunner(store ScheduleStore, reg *registry.Registry, pusher ContentPusher, interval time.Duration) *Runner {
	return &Runner{
		store:    store,
		registry: reg,
		pusher:   pusher,
		interval: interval,
	}
}

// Run evaluates schedules on a fixed interval until the context ends
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Msg("Schedule evaluator started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evaluate(ctx, time.Now())
		}
	}
}

func (r *Runner) evaluate(ctx context.Context, now time.Time) {
	schedules, err := r.store.ListSchedules(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load schedules")
		return
	}
	if len(schedules) == 0 {
		return
	}

	for _, client := range r.registry.GetAll() {
		contentID := ResolveActiveContent(schedules, client.ID, client.GroupName, now)
		if contentID == "" || contentID == client.AssignedContentID {
			continue
		}

		log.Info().
			Str("client_id", client.ID).
			Str("content_id", contentID).
			Str("previous_content_id", client.AssignedContentID).
			Msg("Schedule switches client content")

		if err := r.pusher.Push(ctx, client.ID, contentID); err != nil {
			log.Warn().
				Err(err).
				Str("client_id", client.ID).
				Str("content_id", contentID).
				Msg("Scheduled content push failed")
		}
	}
}
