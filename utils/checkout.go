package utils

import (
	"strconv"
	"strings"
)

// segment is one scoreable dart in preference order: trebles high to low,
// then bull/outer, then singles. Finishing darts are handled separately
// because an x01 leg must end on a double (or the bull).
type segment struct {
	value int
	label string
}

var setupSegments = buildSetupSegments()

func buildSetupSegments() []segment {
	segs := make([]segment, 0, 42)
	for v := 20; v >= 1; v-- {
		segs = append(segs, segment{value: v * 3, label: "T" + itoa(v)})
	}
	segs = append(segs, segment{value: 50, label: "Bull"}, segment{value: 25, label: "25"})
	for v := 20; v >= 1; v-- {
		segs = append(segs, segment{value: v, label: "S" + itoa(v)})
	}
	return segs
}

// SuggestCheckout returns a finishing route of up to three darts for the
// given remaining score, or "" when no finish exists (score out of the
// 2..170 range or a bogey number such as 169).
func SuggestCheckout(score int) string {
	if score < 2 || score > 170 {
		return ""
	}
	route := finishRoute(score, 3)
	return strings.Join(route, " ")
}

// finishRoute prefers the fewest darts, then the highest setup segments.
func finishRoute(score, darts int) []string {
	if label, ok := finishingDouble(score); ok {
		return []string{label}
	}
	if darts <= 1 {
		return nil
	}
	for _, seg := range setupSegments {
		rest := score - seg.value
		if rest < 2 {
			continue
		}
		if route := finishRoute(rest, darts-1); route != nil {
			return append([]string{seg.label}, route...)
		}
	}
	return nil
}

func finishingDouble(score int) (string, bool) {
	if score == 50 {
		return "Bull", true
	}
	if score >= 2 && score <= 40 && score%2 == 0 {
		return "D" + itoa(score/2), true
	}
	return "", false
}

func itoa(v int) string { return strconv.Itoa(v) }
