package exporter

import "fmt"

// Range is an inclusive index range.
type Range struct {
	From int
	To   int
}

// SplitRange splits the inclusive range [from, to] into batches of at most size.
func SplitRange(from, to, size int) ([]Range, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("range end must be >= start")
	}

	out := make([]Range, 0, (to-from)/size+1)
	for start := from; start <= to; start += size {
		end := start + size - 1
		if end > to {
			end = to
		}
		out = append(out, Range{From: start, To: end})
	}
	return out, nil
}
