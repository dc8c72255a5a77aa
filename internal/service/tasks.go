package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// taskGroup tracks outstanding asynchronous work so it can be observed and
// drained. Entries are only added and removed, never iterated for retry.
type taskGroup[T any] struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]T
	// idle is closed whenever the group becomes empty.
	idle chan struct{}
}

func newTaskGroup[T any]() *taskGroup[T] {
	return &taskGroup[T]{tasks: make(map[uuid.UUID]T)}
}

func (g *taskGroup[T]) add(v T) uuid.UUID {
	id := uuid.New()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.tasks) == 0 {
		g.idle = make(chan struct{})
	}
	g.tasks[id] = v
	return id
}

func (g *taskGroup[T]) done(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.tasks[id]; !ok {
		return
	}
	delete(g.tasks, id)
	if len(g.tasks) == 0 {
		close(g.idle)
	}
}

func (g *taskGroup[T]) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tasks)
}

// wait blocks until the group is empty or ctx ends. Work added while waiting
// is waited for as well.
func (g *taskGroup[T]) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		if len(g.tasks) == 0 {
			g.mu.Unlock()
			return nil
		}
		idle := g.idle
		g.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
