package engine

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/devblac/ibc-watch/internal/ibc"
)

// Predicate reports whether the flattened fields of a chain event satisfy a rule condition.
type Predicate func(fields map[string]any) (bool, error)

// CompilePredicates parses rule conditions. A condition names a field (see Fields) and compares
// it with a literal:
//
//	"event == packet_send"
//	"counterparty_chain_id in union-testnet-9,11155111"
//	"client_type contains tendermint"
//	"packet.sequence > 100"
//	"provable_height >= 1-2500"
//
// Literals of the form <revision>-<height> compare as IBC heights, and comparing heights of
// different revisions is an error. Integer literals compare exactly, at any size. Anything else
// supports only == and !=. A condition on a field the event lacks is false.
func CompilePredicates(exprs []string) ([]Predicate, error) {
	var preds []Predicate
	for _, raw := range exprs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := compile(raw)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// Longer operators first so ">=" is not read as ">".
var comparisons = []string{"==", "!=", ">=", "<=", ">", "<"}

func compile(expr string) (Predicate, error) {
	if field, list, ok := strings.Cut(expr, " in "); ok {
		return member(strings.TrimSpace(field), list), nil
	}
	if field, needle, ok := strings.Cut(expr, " contains "); ok {
		needle = strings.TrimSpace(needle)
		return onField(strings.TrimSpace(field), func(v string) (bool, error) {
			return strings.Contains(v, needle), nil
		}), nil
	}
	for _, op := range comparisons {
		field, lit, ok := strings.Cut(expr, op)
		if !ok {
			continue
		}
		field, lit = strings.TrimSpace(field), strings.TrimSpace(lit)
		if field == "" || lit == "" {
			return nil, fmt.Errorf("invalid expression: %s", expr)
		}
		return compare(field, op, lit), nil
	}
	return nil, fmt.Errorf("unsupported expression: %s", expr)
}

func member(field, list string) Predicate {
	values := map[string]struct{}{}
	for _, v := range strings.Split(list, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values[v] = struct{}{}
		}
	}
	return onField(field, func(v string) (bool, error) {
		_, hit := values[v]
		return hit, nil
	})
}

func onField(field string, test func(string) (bool, error)) Predicate {
	return func(fields map[string]any) (bool, error) {
		v, ok := fields[field]
		if !ok || v == nil {
			return false, nil
		}
		return test(fmt.Sprint(v))
	}
}

func compare(field, op, lit string) Predicate {
	if h, ok := heightLiteral(lit); ok {
		return onField(field, func(v string) (bool, error) {
			got, ok := heightLiteral(v)
			if !ok {
				return false, nil
			}
			c, err := got.Compare(h)
			if err != nil {
				return false, fmt.Errorf("%s %s %s: %w", field, op, lit, err)
			}
			return ordered(op, c), nil
		})
	}
	if n, ok := new(big.Int).SetString(lit, 10); ok {
		return onField(field, func(v string) (bool, error) {
			got, ok := new(big.Int).SetString(v, 10)
			if !ok {
				return false, nil
			}
			return ordered(op, got.Cmp(n)), nil
		})
	}
	return onField(field, func(v string) (bool, error) {
		switch op {
		case "==":
			return v == lit, nil
		case "!=":
			return v != lit, nil
		default:
			return false, nil
		}
	})
}

// heightLiteral accepts only the "<revision>-<height>" form, so plain numbers and chain ids
// such as "union-testnet-9" are not heights.
func heightLiteral(s string) (ibc.Height, bool) {
	rev, height, ok := strings.Cut(s, "-")
	if !ok || !digits(rev) || !digits(height) {
		return ibc.Height{}, false
	}
	h, err := ibc.ParseHeight(s)
	return h, err == nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func ordered(op string, c int) bool {
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case ">":
		return c > 0
	case "<":
		return c < 0
	case ">=":
		return c >= 0
	case "<=":
		return c <= 0
	}
	return false
}
