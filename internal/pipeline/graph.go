// Package pipeline runs a small directed acyclic graph of stages.
//
// Each stage starts as soon as every stage it depends on has completed
// successfully. Independent stages run concurrently. The first failing
// stage cancels the context handed to the others and its error is the one
// returned from Run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Graph errors.
var (
	// ErrDuplicateStage is returned when two stages share a name.
	ErrDuplicateStage = errors.New("pipeline: duplicate stage")

	// ErrUnknownDependency is returned when a stage depends on a name that
	// was never added.
	ErrUnknownDependency = errors.New("pipeline: unknown dependency")

	// ErrCycle is returned when the dependencies form a cycle.
	ErrCycle = errors.New("pipeline: dependency cycle")
)

// StageFunc is the body of a stage.
type StageFunc func(ctx context.Context) error

// Stage is one node of the graph.
type Stage struct {
	Name string
	Deps []string
	Run  StageFunc
}

// Timing records when a stage ran, relative to the start of Graph.Run.
type Timing struct {
	Name     string
	Start    time.Duration
	Duration time.Duration
}

// Graph is a set of stages and their dependencies.
// A Graph is built once and run once; it is not safe for concurrent Add.
type Graph struct {
	stages []Stage
	index  map[string]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Add appends a stage that runs after every stage named in deps.
func (g *Graph) Add(name string, run StageFunc, deps ...string) {
	g.stages = append(g.stages, Stage{Name: name, Deps: deps, Run: run})
}

// Stages returns the stages in the order they were added.
func (g *Graph) Stages() []Stage {
	return g.stages
}

// Validate checks names, dependencies and acyclicity.
func (g *Graph) Validate() error {
	g.index = make(map[string]int, len(g.stages))
	for i, s := range g.stages {
		if _, dup := g.index[s.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateStage, s.Name)
		}
		g.index[s.Name] = i
	}
	for _, s := range g.stages {
		for _, d := range s.Deps {
			if _, ok := g.index[d]; !ok {
				return fmt.Errorf("%w: %q needs %q", ErrUnknownDependency, s.Name, d)
			}
		}
	}

	// Kahn's algorithm: every stage must become ready eventually.
	indegree := make([]int, len(g.stages))
	dependents := make([][]int, len(g.stages))
	for i, s := range g.stages {
		indegree[i] = len(s.Deps)
		for _, d := range s.Deps {
			j := g.index[d]
			dependents[j] = append(dependents[j], i)
		}
	}
	ready := make([]int, 0, len(g.stages))
	for i, n := range indegree {
		if n == 0 {
			ready = append(ready, i)
		}
	}
	visited := 0
	for len(ready) > 0 {
		i := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		visited++
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				ready = append(ready, j)
			}
		}
	}
	if visited != len(g.stages) {
		return ErrCycle
	}
	return nil
}

// Run validates the graph and executes it, blocking until every stage has
// finished or one has failed. Timings are returned in the order stages were
// added and only for stages that completed.
func (g *Graph) Run(ctx context.Context) ([]Timing, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	done := make([]chan struct{}, len(g.stages))
	for i := range done {
		done[i] = make(chan struct{})
	}

	var (
		mu      sync.Mutex
		timings = make([]*Timing, len(g.stages))
		origin  = time.Now()
	)

	eg, egctx := errgroup.WithContext(ctx)
	for i, s := range g.stages {
		eg.Go(func() error {
			for _, d := range s.Deps {
				select {
				case <-done[g.index[d]]:
				case <-egctx.Done():
					return egctx.Err()
				}
			}

			start := time.Now()
			if err := s.Run(egctx); err != nil {
				return fmt.Errorf("%s: %w", s.Name, err)
			}
			t := &Timing{Name: s.Name, Start: start.Sub(origin), Duration: time.Since(start)}

			mu.Lock()
			timings[i] = t
			mu.Unlock()

			close(done[i])
			return nil
		})
	}
	err := eg.Wait()

	out := make([]Timing, 0, len(timings))
	for _, t := range timings {
		if t != nil {
			out = append(out, *t)
		}
	}
	return out, err
}
