package rescore

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/events"
	"github.com/spigell/job-radar/internal/profile"
)

type rescorer interface {
	Rescore(ctx context.Context, p *profile.Profile) (Summary, error)
}

// Worker applies profile updates from the bus. While a pass runs, newer updates replace each
// other so only the latest profile is applied next.
type Worker struct {
	bus     events.Bus
	service rescorer
	logger  *zap.Logger
	// done is called after every pass. Tests use it to synchronise.
	done func(Summary, error)
}

func NewWorker(bus events.Bus, service *Service, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{bus: bus, service: service, logger: log}
}

// Run blocks until ctx is done or the subscription ends.
func (w *Worker) Run(ctx context.Context) error {
	updates, err := w.bus.SubscribeProfileUpdated(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("rescoring worker started")

	pending := make(chan *profile.Profile, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for p := range pending {
			summary, err := w.service.Rescore(ctx, p)
			if err != nil {
				w.logger.Error("rescoring failed", zap.String("profile", p.ID), zap.Error(err))
			}
			if w.done != nil {
				w.done(summary, err)
			}
		}
	}()
	defer func() {
		close(pending)
		<-finished
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-updates:
			if !ok {
				w.logger.Info("profile updates closed, stopping rescoring worker")
				return nil
			}
			offer(pending, event.Profile, w.logger)
			w.logger.Info("profile updated", zap.String("profile", event.ProfileID), zap.Time("at", event.At))
		}
	}
}

// offer queues p, replacing a queued profile that has not been picked up yet.
func offer(pending chan *profile.Profile, p *profile.Profile, log *zap.Logger) {
	for {
		select {
		case pending <- p:
			return
		default:
		}
		select {
		case stale := <-pending:
			log.Debug("coalescing profile update", zap.String("replaced", stale.ID))
		default:
		}
	}
}
