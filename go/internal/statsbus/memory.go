package statsbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/go/internal/models"
)

// MemoryBus is a single-process bus. Each subscriber has its own FIFO queue so
// a slow subscriber never reorders another one's stream.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	buffer int
	closed bool
}

type memorySub struct {
	ch   chan models.StatsSnapshot
	once sync.Once
}

func (s *memorySub) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewMemoryBus creates a bus whose subscribers buffer up to buffer snapshots.
func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryBus{subs: make(map[*memorySub]struct{}), buffer: buffer}
}

// Publish delivers snap to every subscriber. A full subscriber queue drops an
// intermediate snapshot for that subscriber only, since the next one
// overwrites the opponent view anyway. Final snapshots are never dropped:
// they wait for queue space until ctx is done.
func (b *MemoryBus) Publish(ctx context.Context, snap models.StatsSnapshot) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for sub := range b.subs {
		if snap.Final {
			select {
			case sub.ch <- snap:
			case <-ctx.Done():
				return fmt.Errorf("deliver final snapshot: %w", ctx.Err())
			}
			continue
		}
		select {
		case sub.ch <- snap:
		case <-ctx.Done():
			return ctx.Err()
		default:
			log.Warn().
				Str("room_id", snap.RoomID).
				Str("player_id", snap.PlayerID).
				Msg("stats subscriber full, dropping snapshot")
		}
	}
	return nil
}

// Subscribe registers a subscriber.
func (b *MemoryBus) Subscribe(ctx context.Context) (<-chan models.StatsSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	sub := &memorySub{ch: make(chan models.StatsSnapshot, b.buffer)}
	b.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		sub.close()
	}()
	return sub.ch, nil
}

// Close closes every subscriber channel.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		sub.close()
		delete(b.subs, sub)
	}
	return nil
}
