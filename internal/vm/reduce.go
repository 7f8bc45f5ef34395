package vm

// Reduce collapses resolved nodes of op. Data children of a Conc are yielded, a Data head of a
// Seq is yielded and the Seq advances, empty Seq and Conc nodes vanish, single-child groups
// collapse into their child and a Conc nested in a Conc is flattened. done reports that nothing
// is left to evaluate.
func Reduce[C, D any](op Op[C, D]) (rest Op[C, D], out []D, done bool) {
	switch op.kind {
	case KindData:
		return Op[C, D]{}, []D{op.data}, true
	case KindCall:
		return op, nil, false
	case KindSeq:
		return reduceSeq(op)
	case KindConc:
		return reduceConc(op)
	default:
		return Op[C, D]{}, nil, true
	}
}

func reduceSeq[C, D any](op Op[C, D]) (Op[C, D], []D, bool) {
	var out []D
	ops := op.ops
	for len(ops) > 0 {
		head, yielded, done := Reduce(ops[0])
		out = append(out, yielded...)
		if !done {
			rest := make([]Op[C, D], 0, len(ops))
			rest = append(rest, head)
			rest = append(rest, ops[1:]...)
			if len(rest) == 1 {
				return rest[0], out, false
			}
			return Op[C, D]{kind: KindSeq, ops: rest}, out, false
		}
		ops = ops[1:]
	}
	return Op[C, D]{}, out, true
}

func reduceConc[C, D any](op Op[C, D]) (Op[C, D], []D, bool) {
	var out []D
	rest := make([]Op[C, D], 0, len(op.ops))
	for _, c := range op.ops {
		r, yielded, done := Reduce(c)
		out = append(out, yielded...)
		if done {
			continue
		}
		if r.kind == KindConc {
			rest = append(rest, r.ops...)
			continue
		}
		rest = append(rest, r)
	}
	switch len(rest) {
	case 0:
		return Op[C, D]{}, out, true
	case 1:
		return rest[0], out, false
	default:
		return Op[C, D]{kind: KindConc, ops: rest}, out, false
	}
}

// Split breaks a root Conc into its independent children so that a scheduler can track them as
// separate items. Any other op is returned as the only element.
func Split[C, D any](op Op[C, D]) []Op[C, D] {
	if op.kind == KindConc {
		return clone(op.ops)
	}
	return []Op[C, D]{op}
}
