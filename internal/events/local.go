package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const localBuffer = 8

// Local is an in-process bus used when no Redis is configured.
type Local struct {
	mu     sync.Mutex
	subs   map[int]chan ProfileUpdated
	next   int
	closed bool
	logger *zap.Logger
}

func NewLocal(logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{subs: make(map[int]chan ProfileUpdated), logger: logger}
}

// PublishProfileUpdated delivers the event to every subscriber. A subscriber whose buffer is
// full loses its oldest pending event, so slow consumers always see the newest profile.
func (l *Local) PublishProfileUpdated(ctx context.Context, event ProfileUpdated) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Round trip through JSON so subscribers never share the publisher's profile.
	payload, err := encode(event)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	for id, ch := range l.subs {
		delivered, err := decode(payload)
		if err != nil {
			return err
		}
		select {
		case ch <- delivered:
			continue
		default:
		}
		select {
		case <-ch:
			l.logger.Debug("dropping stale profile event", zap.Int("subscriber", id))
		default:
		}
		select {
		case ch <- delivered:
		default:
		}
	}
	return nil
}

func (l *Local) SubscribeProfileUpdated(ctx context.Context) (<-chan ProfileUpdated, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}

	id := l.next
	l.next++
	ch := make(chan ProfileUpdated, localBuffer)
	l.subs[id] = ch

	go func() {
		<-ctx.Done()
		l.unsubscribe(id)
	}()
	return ch, nil
}

func (l *Local) unsubscribe(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.subs[id]; ok {
		delete(l.subs, id)
		close(ch)
	}
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
	return nil
}
