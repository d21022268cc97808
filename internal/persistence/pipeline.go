package persistence

import (
	"context"
	"sync"
	"time"

	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/models"
)

const followUpTimeout = 15 * time.Second

// Store is the mandatory stage of a commit.
type Store interface {
	Commit(ctx context.Context, c models.Commitment) (string, error)
}

type Option func(*Pipeline)

func WithProcessStarter(p *ProcessStarter) Option {
	return func(pl *Pipeline) { pl.process = p }
}

func WithNotifier(n *Notifier) Option {
	return func(pl *Pipeline) { pl.notifier = n }
}

// Pipeline commits to the store, then starts the workflow and sends
// notifications in the background. Only the store decides success; the
// follow-ups are logged on failure.
type Pipeline struct {
	store    Store
	process  *ProcessStarter
	notifier *Notifier
	logger   logger.Logger
	wg       sync.WaitGroup
}

func NewPipeline(store Store, log logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:  store,
		logger: log.With(map[string]interface{}{"component": "commit-pipeline"}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Commit(ctx context.Context, c models.Commitment) (string, error) {
	id, err := p.store.Commit(ctx, c)
	if err != nil {
		return "", err
	}
	if p.process == nil && p.notifier == nil {
		return id, nil
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
		defer cancel()
		p.followUp(fctx, id, c)
	}()
	return id, nil
}

func (p *Pipeline) followUp(ctx context.Context, id string, c models.Commitment) {
	if p.process != nil {
		if _, err := p.process.Start(ctx, id, c); err != nil {
			p.logger.WithError(err).Warn("process start failed", map[string]interface{}{
				"confirmationId": id,
				"kind":           string(c.Kind),
			})
		}
	}
	if p.notifier != nil {
		if err := p.notifier.Notify(ctx, id, c); err != nil {
			p.logger.WithError(err).Warn("notification failed", map[string]interface{}{
				"confirmationId": id,
				"kind":           string(c.Kind),
			})
		}
	}
}

// Wait blocks until in-flight follow-ups finish.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
