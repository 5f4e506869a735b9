// Package rangestr converts between realization masks and range strings
// such as "0-1, 4-6, 8".
package rangestr

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders the indices set in mask as comma separated ranges.
// Consecutive indices collapse into "a-b". An empty mask gives "".
func Format(mask []bool) string {
	var parts []string
	for i := 0; i < len(mask); i++ {
		if !mask[i] {
			continue
		}
		start := i
		for i+1 < len(mask) && mask[i+1] {
			i++
		}
		if start == i {
			parts = append(parts, strconv.Itoa(i))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, i))
		}
	}
	return strings.Join(parts, ", ")
}

// Parse turns a range string into a mask of length size. Whitespace is
// ignored. Indices outside [0, size) and reversed ranges are errors.
func Parse(s string, size int) ([]bool, error) {
	mask := make([]bool, size)
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return mask, nil
	}
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			return nil, fmt.Errorf("range %q has an empty element", s)
		}
		lo, hi, err := parseRange(part)
		if err != nil {
			return nil, err
		}
		if hi >= size {
			return nil, fmt.Errorf("index %d out of range for size %d", hi, size)
		}
		for i := lo; i <= hi; i++ {
			mask[i] = true
		}
	}
	return mask, nil
}

func parseRange(part string) (int, int, error) {
	loStr, hiStr, isRange := strings.Cut(part, "-")
	lo, err := strconv.Atoi(loStr)
	if err != nil || lo < 0 {
		return 0, 0, fmt.Errorf("invalid index %q", loStr)
	}
	if !isRange {
		return lo, lo, nil
	}
	hi, err := strconv.Atoi(hiStr)
	if err != nil || hi < 0 {
		return 0, 0, fmt.Errorf("invalid index %q", hiStr)
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("reversed range %q", part)
	}
	return lo, hi, nil
}

// All returns a mask of size with every index set.
func All(size int) []bool {
	mask := make([]bool, size)
	for i := range mask {
		mask[i] = true
	}
	return mask
}
