// Package pipeline runs an ordered list of named steps over a shared,
// mutable context value.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"catalog-service/internal/domain"
)

// Step is one stage of a pipeline. Steps communicate only through c.
type Step[C any] interface {
	Name() string
	Run(ctx context.Context, c *C) error
}

type stepFunc[C any] struct {
	name string
	fn   func(context.Context, *C) error
}

func (s stepFunc[C]) Name() string { return s.name }

func (s stepFunc[C]) Run(ctx context.Context, c *C) error { return s.fn(ctx, c) }

// Func adapts a function into a named Step.
func Func[C any](name string, fn func(context.Context, *C) error) Step[C] {
	return stepFunc[C]{name: name, fn: fn}
}

// When wraps step so it only runs when cond holds for the current context.
func When[C any](cond func(*C) bool, step Step[C]) Step[C] {
	return Func(step.Name(), func(ctx context.Context, c *C) error {
		if !cond(c) {
			return nil
		}
		return step.Run(ctx, c)
	})
}

// StepError reports which step of which pipeline failed. It unwraps to the
// step's own error so errors.Is and errors.As see through it.
type StepError struct {
	Pipeline string
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Pipeline, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Pipeline is an immutable, ordered list of steps.
type Pipeline[C any] struct {
	name   string
	steps  []Step[C]
	logger *zap.Logger
}

func New[C any](name string, logger *zap.Logger, steps ...Step[C]) *Pipeline[C] {
	return &Pipeline[C]{
		name:   name,
		steps:  append([]Step[C](nil), steps...),
		logger: logger.With(zap.String("pipeline", name)),
	}
}

// Steps returns the step names in execution order.
func (p *Pipeline[C]) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Run executes the steps in order. The first failing step stops the run and
// its error is returned wrapped in a *StepError; later steps never start.
func (p *Pipeline[C]) Run(ctx context.Context, c *C) error {
	for _, step := range p.steps {
		if err := p.runStep(ctx, step, c); err != nil {
			var de *domain.Error
			if errors.As(err, &de) {
				p.logger.Debug("Pipeline step rejected input",
					zap.String("step", step.Name()), zap.String("kind", string(de.Kind)))
			} else {
				p.logger.Error("Pipeline step failed", zap.String("step", step.Name()), zap.Error(err))
			}
			return &StepError{Pipeline: p.name, Step: step.Name(), Err: err}
		}
	}
	return nil
}

// runStep turns a panicking step into an ordinary error.
func (p *Pipeline[C]) runStep(ctx context.Context, step Step[C], c *C) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.Run(ctx, c)
}
