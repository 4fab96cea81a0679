package event

import (
	"log/slog"
	"sync"

	"github.com/psaab/relayd/pkg/task"
)

// Handler observes a pending command and may record a verdict on it.
type Handler func(ev *CommandExecute)

type subscription struct {
	id      uint64
	name    string
	handler Handler
}

// Bus fans a CommandExecute event out to observers. Observers run
// sequentially in registration order on a single task, so each sees
// the verdicts of those before it.
type Bus struct {
	runner task.Runner

	mu   sync.RWMutex
	subs []subscription
	next uint64
}

// NewBus creates a bus running observer chains on runner. A nil
// runner uses one goroutine per fired event.
func NewBus(runner task.Runner) *Bus {
	if runner == nil {
		runner = task.Goroutines{}
	}
	return &Bus{runner: runner}
}

// Subscribe registers an observer under a diagnostic name and returns
// its unsubscribe function.
func (b *Bus) Subscribe(name string, h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs = append(b.subs, subscription{id: id, name: name, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Observers returns the diagnostic names of current subscribers, in
// registration order.
func (b *Bus) Observers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, len(b.subs))
	for i, s := range b.subs {
		names[i] = s.name
	}
	return names
}

// Fire dispatches ev to all observers asynchronously. The returned
// channel yields ev once every observer has run. A panicking observer
// is logged and skipped; the chain continues.
func (b *Bus) Fire(ev *CommandExecute) <-chan *CommandExecute {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	done := make(chan *CommandExecute, 1)
	b.runner.Go(func() {
		for _, s := range subs {
			invoke(s, ev)
		}
		done <- ev
	})
	return done
}

func invoke(s subscription, ev *CommandExecute) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("command observer panicked",
				"observer", s.name, "event", ev.ID, "panic", r)
		}
	}()
	s.handler(ev)
}
