package vm

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrDefect marks a logic bug discovered while dispatching a call. It aborts only the branch
	// that raised it and is never worth retrying unchanged.
	ErrDefect = errors.New("defect")

	// ErrNotReady is returned by a handler that cannot make progress on a call yet. The call is
	// left in place and presented again on a later pass.
	ErrNotReady = errors.New("not ready")
)

// Defect builds an ErrDefect-wrapped error.
func Defect(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDefect, fmt.Sprintf(format, args...))
}

// IsDefect reports whether err was caused by a defect.
func IsDefect(err error) bool {
	return errors.Is(err, ErrDefect)
}

// Handler is a plugin able to evaluate some calls.
type Handler[C, D any] interface {
	// Interest reports whether the handler claims call.
	Interest(call C) bool
	// Call dispatches call and returns the op that replaces it.
	Call(ctx context.Context, call C) (Op[C, D], error)
}

// CallError reports a failed dispatch.
type CallError struct {
	Path Path
	Err  error
}

func (e CallError) Error() string {
	return fmt.Sprintf("call at %s: %v", e.Path, e.Err)
}

func (e CallError) Unwrap() error { return e.Err }

// PassResult is the outcome of one pass of a handler over a batch.
type PassResult[C, D any] struct {
	// Ready holds the replacement of every dispatched call, keyed by its original path.
	Ready []Indexed[C, D]
	// OptimizeFurther holds the frontier calls the handler was not interested in.
	OptimizeFurther []Indexed[C, D]
	// Failed holds calls whose dispatch returned an error; the nodes are left untouched.
	Failed []CallError
	// Deferred holds calls whose handler returned ErrNotReady.
	Deferred []Path
}

// Progressed reports whether the pass rewrote anything.
func (r PassResult[C, D]) Progressed() bool {
	return len(r.Ready) > 0
}

// PassOptions tunes RunPass.
type PassOptions struct {
	// Limit bounds the number of concurrent dispatches; zero or negative means unbounded.
	Limit int
}

// RunPass dispatches every frontier call of every batch element that h is interested in. Sibling
// calls run concurrently and in no particular order. A failing call never affects its siblings.
func RunPass[C, D any](ctx context.Context, h Handler[C, D], batch []Op[C, D], opts PassOptions) PassResult[C, D] {
	var (
		res    PassResult[C, D]
		claims []Indexed[C, D]
	)
	for i, root := range batch {
		for _, f := range Frontier(root) {
			f.Path = append(Path{i}, f.Path...)
			call, _ := f.Op.Call()
			if h.Interest(call) {
				claims = append(claims, f)
			} else {
				res.OptimizeFurther = append(res.OptimizeFurther, f)
			}
		}
	}
	if len(claims) == 0 {
		return res
	}

	type outcome struct {
		op  Op[C, D]
		err error
	}
	outcomes := make([]outcome, len(claims))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Limit > 0 {
		g.SetLimit(opts.Limit)
	}
	for i, claim := range claims {
		i := i
		call, _ := claim.Op.Call()
		g.Go(func() error {
			op, err := dispatch(gctx, h, call)
			outcomes[i] = outcome{op: op, err: err}
			// Errors stay per call; returning nil keeps siblings running.
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		path := claims[i].Path
		switch {
		case errors.Is(o.err, ErrNotReady):
			res.Deferred = append(res.Deferred, path)
		case o.err != nil:
			res.Failed = append(res.Failed, CallError{Path: path, Err: o.err})
		case !o.op.Valid():
			res.Failed = append(res.Failed, CallError{Path: path, Err: Defect("handler returned a zero op")})
		default:
			res.Ready = append(res.Ready, Indexed[C, D]{Path: path, Op: o.op})
		}
	}
	return res
}

func dispatch[C, D any](ctx context.Context, h Handler[C, D], call C) (op Op[C, D], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v\n%s", ErrDefect, r, debug.Stack())
		}
	}()
	return h.Call(ctx, call)
}
