package store

import (
	"sync"

	"restaurant-pos/internal/models"
)

// Feed delivers committed changes of a Memory store. Events are dropped when
// the subscriber falls more than the buffer behind.
type Feed struct {
	m            *Memory
	restaurantID string
	ch           chan models.ChangeEvent
	once         sync.Once
}

// Subscribe starts a change feed filtered by restaurant. An empty
// restaurantID receives everything.
func (m *Memory) Subscribe(restaurantID string) *Feed {
	f := &Feed{
		m:            m,
		restaurantID: restaurantID,
		ch:           make(chan models.ChangeEvent, 64),
	}
	m.feedMu.Lock()
	m.feeds[f] = struct{}{}
	m.feedMu.Unlock()
	return f
}

func (f *Feed) Events() <-chan models.ChangeEvent {
	return f.ch
}

func (f *Feed) Close() error {
	f.once.Do(func() {
		f.m.feedMu.Lock()
		delete(f.m.feeds, f)
		close(f.ch)
		f.m.feedMu.Unlock()
	})
	return nil
}

func (m *Memory) publish(events []models.ChangeEvent) {
	if len(events) == 0 {
		return
	}
	m.feedMu.Lock()
	defer m.feedMu.Unlock()
	for f := range m.feeds {
		for _, ev := range events {
			if f.restaurantID != "" && ev.Row.RestaurantID != f.restaurantID {
				continue
			}
			select {
			case f.ch <- ev:
			default:
			}
		}
	}
}
