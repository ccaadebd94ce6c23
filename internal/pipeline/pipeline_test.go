package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalog-service/internal/domain"
)

type trace struct {
	visited []string
	flag    bool
}

func record(name string) Step[trace] {
	return Func(name, func(_ context.Context, c *trace) error {
		c.visited = append(c.visited, name)
		return nil
	})
}

func TestPipeline_RunsStepsInOrder(t *testing.T) {
	p := New("test", zap.NewNop(), record("a"), record("b"), record("c"))

	c := &trace{}
	require.NoError(t, p.Run(context.Background(), c))

	assert.Equal(t, []string{"a", "b", "c"}, c.visited)
	assert.Equal(t, []string{"a", "b", "c"}, p.Steps())
}

func TestPipeline_FirstErrorShortCircuits(t *testing.T) {
	failing := Func("fail", func(_ context.Context, c *trace) error {
		c.visited = append(c.visited, "fail")
		return domain.NewError(domain.KindCategoryNotFound, "c1")
	})
	p := New("product.create", zap.NewNop(), record("a"), failing, record("never"))

	c := &trace{}
	err := p.Run(context.Background(), c)

	require.Error(t, err)
	assert.Equal(t, []string{"a", "fail"}, c.visited)
	assert.ErrorIs(t, err, domain.ErrCategoryNotFound)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "product.create", se.Pipeline)
	assert.Equal(t, "fail", se.Step)
}

func TestPipeline_PanicBecomesError(t *testing.T) {
	boom := Func("boom", func(context.Context, *trace) error {
		panic("unexpected")
	})
	p := New("test", zap.NewNop(), boom, record("after"))

	c := &trace{}
	err := p.Run(context.Background(), c)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: unexpected")
	assert.Empty(t, c.visited)
}

func TestWhen_SkipsStepWhenConditionFails(t *testing.T) {
	p := New("test", zap.NewNop(),
		When(func(c *trace) bool { return c.flag }, record("guarded")),
		record("always"),
	)

	c := &trace{}
	require.NoError(t, p.Run(context.Background(), c))
	assert.Equal(t, []string{"always"}, c.visited)

	c = &trace{flag: true}
	require.NoError(t, p.Run(context.Background(), c))
	assert.Equal(t, []string{"guarded", "always"}, c.visited)
}

// Feature: catalog, Property 30: No step after a failing step runs
func TestProperty_NoStepAfterFailure(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("the visited prefix ends exactly at the failing step", prop.ForAll(
		func(n, failAt int) bool {
			failAt = failAt % n
			steps := make([]Step[trace], n)
			for i := 0; i < n; i++ {
				i := i
				steps[i] = Func("s", func(_ context.Context, c *trace) error {
					c.visited = append(c.visited, "s")
					if i == failAt {
						return errors.New("stop")
					}
					return nil
				})
			}

			c := &trace{}
			err := New("prop", zap.NewNop(), steps...).Run(context.Background(), c)
			return err != nil && len(c.visited) == failAt+1
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
