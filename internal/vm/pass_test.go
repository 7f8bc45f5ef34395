package vm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder resolves "x" into data(len(x)), "!x" into an error, "?x" into ErrNotReady and
// "panic" into a panic. Calls prefixed with "other:" are not claimed.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) Interest(c string) bool { return !strings.HasPrefix(c, "other:") }

func (r *recorder) Call(_ context.Context, c string) (testOp, error) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	switch {
	case c == "panic":
		panic("boom")
	case strings.HasPrefix(c, "!"):
		return testOp{}, errors.New("failed " + c)
	case strings.HasPrefix(c, "?"):
		return testOp{}, ErrNotReady
	case c == "zero":
		return testOp{}, nil
	}
	return data(len(c)), nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// drive runs passes until nothing progresses and returns the yielded values in order.
func drive(t *testing.T, h Handler[string, int], op testOp) ([]int, testOp) {
	t.Helper()
	var out []int
	for i := 0; i < 32; i++ {
		res := RunPass(context.Background(), h, []testOp{op}, PassOptions{Limit: 2})
		batch, err := Apply([]testOp{op}, res.Ready)
		require.NoError(t, err)
		rest, yielded, done := Reduce(batch[0])
		out = append(out, yielded...)
		if done {
			return out, testOp{}
		}
		op = rest
		if !res.Progressed() {
			return out, op
		}
	}
	t.Fatal("did not settle")
	return nil, testOp{}
}

func TestRunPassSeqOrdering(t *testing.T) {
	h := &recorder{}
	out, _ := drive(t, h, seq(call("a"), call("bb"), call("ccc")))

	assert.Equal(t, []string{"a", "bb", "ccc"}, h.seen())
	assert.Equal(t, []int{1, 2, 3}, out)
}

func TestRunPassSeqHeadOnlyPerPass(t *testing.T) {
	h := &recorder{}
	res := RunPass(context.Background(), h, []testOp{seq(call("a"), call("b"))}, PassOptions{})

	require.Len(t, res.Ready, 1)
	assert.True(t, res.Ready[0].Path.Equal(Path{0, 0}))
	assert.Equal(t, []string{"a"}, h.seen())
}

func TestRunPassConcEitherOrder(t *testing.T) {
	for _, op := range []testOp{conc(call("a"), call("bb")), conc(call("bb"), call("a"))} {
		h := &recorder{}
		out, _ := drive(t, h, op)
		assert.ElementsMatch(t, []int{1, 2}, out)
		assert.ElementsMatch(t, []string{"a", "bb"}, h.seen())
	}
}

func TestRunPassOptimizeFurther(t *testing.T) {
	h := &recorder{}
	res := RunPass(context.Background(), h, []testOp{call("other:x"), conc(call("a"), call("other:y"))}, PassOptions{})

	require.Len(t, res.OptimizeFurther, 2)
	assert.True(t, res.OptimizeFurther[0].Path.Equal(Path{0}))
	assert.True(t, res.OptimizeFurther[1].Path.Equal(Path{1, 1}))
	require.Len(t, res.Ready, 1)
	assert.True(t, res.Ready[0].Path.Equal(Path{1, 0}))
}

func TestRunPassFailuresAreIsolated(t *testing.T) {
	h := &recorder{}
	batch := []testOp{conc(call("!bad"), call("ok"), call("panic"), call("?later"), call("zero"))}
	res := RunPass(context.Background(), h, batch, PassOptions{Limit: 1})

	require.Len(t, res.Ready, 1)
	assert.True(t, res.Ready[0].Path.Equal(Path{0, 1}))

	require.Len(t, res.Failed, 3)
	assert.False(t, IsDefect(res.Failed[0]), "plain errors are not defects")
	assert.True(t, IsDefect(res.Failed[1]), "panics become defects")
	assert.Contains(t, res.Failed[1].Error(), "boom")
	assert.True(t, IsDefect(res.Failed[2]), "zero ops are defects")

	require.Len(t, res.Deferred, 1)
	assert.True(t, res.Deferred[0].Equal(Path{0, 3}))

	out, err := Apply(batch, res.Ready)
	require.NoError(t, err)
	assert.Equal(t, "conc[call(!bad), data(2), call(panic), call(?later), call(zero)]", out[0].String())
}

func TestRunPassNothingClaimed(t *testing.T) {
	res := RunPass(context.Background(), &recorder{}, []testOp{data(1), call("other:z")}, PassOptions{})
	assert.False(t, res.Progressed())
	assert.Len(t, res.OptimizeFurther, 1)
}
