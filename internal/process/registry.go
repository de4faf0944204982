package process

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry tracks live children until they exit.
type Registry struct {
	mu       sync.Mutex
	children map[int]*Child
}

func NewRegistry() *Registry {
	return &Registry{children: map[int]*Child{}}
}

// Track adds child and drops it again once it exits.
func (r *Registry) Track(child *Child) {
	if r == nil || child == nil {
		return
	}
	r.mu.Lock()
	r.children[child.PID] = child
	r.mu.Unlock()
	go func() {
		<-child.Done()
		r.mu.Lock()
		delete(r.children, child.PID)
		r.mu.Unlock()
	}()
}

// Children lists tracked children ordered by pid.
func (r *Registry) Children() []*Child {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	children := make([]*Child, 0, len(r.children))
	for _, child := range r.children {
		children = append(children, child)
	}
	r.mu.Unlock()
	sort.Slice(children, func(i, j int) bool { return children[i].PID < children[j].PID })
	return children
}

// StopAll stops every tracked group in parallel. Groups still alive when ctx
// ends are killed.
func (r *Registry) StopAll(ctx context.Context) error {
	return r.each(func(child *Child) error { return child.Stop(ctx) })
}

// KillAll kills every tracked group.
func (r *Registry) KillAll() error {
	return r.each(func(child *Child) error { return child.Kill() })
}

func (r *Registry) each(fn func(*Child) error) error {
	children := r.Children()
	errs := make([]error, len(children))
	var group errgroup.Group
	for i, child := range children {
		i, child := i, child
		group.Go(func() error {
			if err := fn(child); err != nil {
				errs[i] = fmt.Errorf("%s (pid %d): %w", child.Name, child.PID, err)
			}
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(errs...)
}
