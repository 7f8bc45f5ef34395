package vm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned when a path does not address a node of the tree.
var ErrInvalidPath = errors.New("invalid path")

// Path addresses a node by child indices from the root. In a batch the first index is the
// position of the root in the batch.
type Path []int

// Child returns a new path extended by i.
func (p Path) Child(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = strconv.Itoa(n)
	}
	return "[" + strings.Join(parts, ".") + "]"
}

// Equal reports whether both paths address the same node.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// At returns the node addressed by path, relative to root.
func At[C, D any](root Op[C, D], path Path) (Op[C, D], error) {
	cur := root
	for depth, i := range path {
		if cur.kind != KindSeq && cur.kind != KindConc {
			return Op[C, D]{}, fmt.Errorf("%w: %s descends into %s at depth %d", ErrInvalidPath, path, cur.kind, depth)
		}
		if i < 0 || i >= len(cur.ops) {
			return Op[C, D]{}, fmt.Errorf("%w: %s index %d out of range (%d children)", ErrInvalidPath, path, i, len(cur.ops))
		}
		cur = cur.ops[i]
	}
	return cur, nil
}

// Replace returns a copy of root with the node at path replaced by with. Nodes off the path are
// shared with the input and never modified.
func Replace[C, D any](root Op[C, D], path Path, with Op[C, D]) (Op[C, D], error) {
	if len(path) == 0 {
		return with, nil
	}
	if root.kind != KindSeq && root.kind != KindConc {
		return Op[C, D]{}, fmt.Errorf("%w: %s descends into %s", ErrInvalidPath, path, root.kind)
	}
	i := path[0]
	if i < 0 || i >= len(root.ops) {
		return Op[C, D]{}, fmt.Errorf("%w: %s index %d out of range (%d children)", ErrInvalidPath, path, i, len(root.ops))
	}
	child, err := Replace(root.ops[i], path[1:], with)
	if err != nil {
		return Op[C, D]{}, err
	}
	ops := clone(root.ops)
	ops[i] = child
	return Op[C, D]{kind: root.kind, ops: ops}, nil
}

// Indexed pairs an op with the path it was taken from.
type Indexed[C, D any] struct {
	Path Path
	Op   Op[C, D]
}

// Apply splices every replacement into the batch at its path. The first path index selects the
// batch element.
func Apply[C, D any](batch []Op[C, D], ready []Indexed[C, D]) ([]Op[C, D], error) {
	out := clone(batch)
	for _, r := range ready {
		if len(r.Path) == 0 {
			return nil, fmt.Errorf("%w: empty path in batch", ErrInvalidPath)
		}
		i := r.Path[0]
		if i < 0 || i >= len(out) {
			return nil, fmt.Errorf("%w: %s batch index out of range (%d ops)", ErrInvalidPath, r.Path, len(out))
		}
		op, err := Replace(out[i], r.Path[1:], r.Op)
		if err != nil {
			return nil, err
		}
		out[i] = op
	}
	return out, nil
}

// Frontier lists the calls that may be dispatched now: a root Call, every frontier call of
// every Conc child, and only the head's frontier for a Seq.
func Frontier[C, D any](root Op[C, D]) []Indexed[C, D] {
	var out []Indexed[C, D]
	frontier(root, Path{}, &out)
	return out
}

func frontier[C, D any](op Op[C, D], at Path, out *[]Indexed[C, D]) {
	switch op.kind {
	case KindCall:
		*out = append(*out, Indexed[C, D]{Path: at, Op: op})
	case KindSeq:
		if len(op.ops) > 0 {
			frontier(op.ops[0], at.Child(0), out)
		}
	case KindConc:
		for i, c := range op.ops {
			frontier(c, at.Child(i), out)
		}
	}
}
