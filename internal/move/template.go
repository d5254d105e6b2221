package move

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lgrenard/melo/internal/library"
)

// Path templates are /-delimited sequences of segments. Each segment mixes
// literal text with {...} placeholders:
//
//	{album.artist}              field reference
//	{track.track_num:02}        zero-padded integer
//	{track.track_num>9?sub}     conditional: evaluate sub (itself a
//	                            segment template) when the comparison holds
//
// Field references are qualified by the entity alias: "album", "track", or
// "extra". Tracks and extras additionally see their owning album's fields
// under "album". This is a deliberately restricted language; templates come
// from user configuration and must not reach a general evaluator.

// segment is either a literal run or the inside of a {...} placeholder.
type segment struct {
	isPlaceholder bool
	value         string
}

// parseTemplate splits a segment template into literals and placeholders.
// Braces nest inside conditionals, so depth is tracked; {{ and }} escape
// literal braces.
func parseTemplate(template string) ([]segment, error) {
	var segments []segment
	var current []rune
	depth := 0

	runes := []rune(template)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if depth == 0 && r == '{' && i+1 < len(runes) && runes[i+1] == '{' {
			current = append(current, '{')
			i++
			continue
		}
		if depth == 0 && r == '}' && i+1 < len(runes) && runes[i+1] == '}' {
			current = append(current, '}')
			i++
			continue
		}

		switch {
		case r == '{':
			if depth == 0 {
				if len(current) > 0 {
					segments = append(segments, segment{value: string(current)})
					current = nil
				}
			} else {
				current = append(current, r)
			}
			depth++
		case r == '}':
			if depth == 0 {
				return nil, fmt.Errorf("template %q: unbalanced '}'", template)
			}
			depth--
			if depth == 0 {
				segments = append(segments, segment{isPlaceholder: true, value: string(current)})
				current = nil
			} else {
				current = append(current, r)
			}
		default:
			current = append(current, r)
		}
	}

	if depth != 0 {
		return nil, fmt.Errorf("template %q: unbalanced '{'", template)
	}
	if len(current) > 0 {
		segments = append(segments, segment{value: string(current)})
	}
	return segments, nil
}

// evalSegment evaluates one /-free segment template against an item.
func evalSegment(template string, item library.Item) (string, error) {
	segments, err := parseTemplate(template)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, seg := range segments {
		if !seg.isPlaceholder {
			out.WriteString(seg.value)
			continue
		}
		resolved, err := evalPlaceholder(seg.value, item)
		if err != nil {
			return "", err
		}
		out.WriteString(resolved)
	}
	return out.String(), nil
}

func evalPlaceholder(expr string, item library.Item) (string, error) {
	if cond, then, ok := splitConditional(expr); ok {
		holds, err := evalCondition(cond, item)
		if err != nil {
			return "", err
		}
		if !holds {
			return "", nil
		}
		return evalSegment(then, item)
	}

	ref := expr
	pad := ""
	if idx := strings.IndexByte(expr, ':'); idx >= 0 {
		ref, pad = expr[:idx], expr[idx+1:]
	}

	value, err := resolveField(item, strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return formatValue(value, pad)
}

// splitConditional splits "cond?then" at the first top-level '?'.
func splitConditional(expr string) (cond, then string, ok bool) {
	depth := 0
	for i, r := range expr {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case '?':
			if depth == 0 {
				return expr[:i], expr[i+1:], true
			}
		}
	}
	return "", "", false
}

var comparisonOps = []string{">=", "<=", "!=", "==", ">", "<"}

// evalCondition evaluates "field op n" where n is an integer literal.
func evalCondition(cond string, item library.Item) (bool, error) {
	for _, op := range comparisonOps {
		idx := strings.Index(cond, op)
		if idx < 0 {
			continue
		}
		lhs, err := resolveField(item, strings.TrimSpace(cond[:idx]))
		if err != nil {
			return false, err
		}
		n, ok := lhs.(int)
		if !ok {
			return false, fmt.Errorf("condition %q: field is not an integer", cond)
		}
		rhs, err := strconv.Atoi(strings.TrimSpace(cond[idx+len(op):]))
		if err != nil {
			return false, fmt.Errorf("condition %q: right-hand side is not an integer", cond)
		}
		switch op {
		case ">":
			return n > rhs, nil
		case "<":
			return n < rhs, nil
		case ">=":
			return n >= rhs, nil
		case "<=":
			return n <= rhs, nil
		case "==":
			return n == rhs, nil
		case "!=":
			return n != rhs, nil
		}
	}
	return false, fmt.Errorf("condition %q: no comparison operator", cond)
}

// resolveField resolves a qualified "alias.field" reference against an item.
func resolveField(item library.Item, ref string) (any, error) {
	alias, field, found := strings.Cut(ref, ".")
	if !found {
		return nil, fmt.Errorf("field reference %q: want alias.field", ref)
	}

	var target library.Item
	switch it := item.(type) {
	case *library.Album:
		if alias == "album" {
			target = it
		}
	case *library.Track:
		switch alias {
		case "track":
			target = it
		case "album":
			target = it.Album
		}
	case *library.Extra:
		switch alias {
		case "extra":
			target = it
		case "album":
			target = it.Album
		}
	default:
		panic(fmt.Sprintf("move: unsupported item kind %s", item.Kind()))
	}
	if target == nil {
		return nil, fmt.Errorf("field reference %q: alias %q does not apply to a %s", ref, alias, item.Kind())
	}

	value, ok := target.Field(field)
	if !ok {
		return nil, fmt.Errorf("field reference %q: %s has no field %q", ref, target.Kind(), field)
	}
	return value, nil
}

func formatValue(value any, pad string) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		if pad == "" {
			return strconv.Itoa(v), nil
		}
		width, err := strconv.Atoi(pad)
		if err != nil {
			return "", fmt.Errorf("pad spec %q is not an integer", pad)
		}
		return fmt.Sprintf("%0*d", width, v), nil
	case nil:
		return "", nil
	}
	return fmt.Sprint(value), nil
}
