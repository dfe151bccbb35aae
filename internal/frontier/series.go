package frontier

import (
	"math"
	"sort"
)

const secondsPerDay = 86400

// Point is a single observation of a raw series. A NaN value marks a missing observation.
type Point struct {
	Timestamp int64
	Value     float64
}

// Series is an unaligned sequence of observations indexed by UNIX timestamp.
type Series []Point

// Dedup returns the series sorted by timestamp, keeping the first value seen for each timestamp.
func (s Series) Dedup() Series {
	seen := make(map[int64]struct{}, len(s))
	out := make(Series, 0, len(s))
	for _, p := range s {
		if _, ok := seen[p.Timestamp]; ok {
			continue
		}
		seen[p.Timestamp] = struct{}{}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// daily buckets observations by UTC day and keeps the last non-missing value of each day.
func (s Series) daily() map[int64]float64 {
	out := make(map[int64]float64)
	for _, p := range s.Dedup() {
		if math.IsNaN(p.Value) {
			continue
		}
		out[dayOf(p.Timestamp)] = p.Value
	}
	return out
}

func dayOf(ts int64) int64 {
	day := ts / secondsPerDay
	if ts < 0 && ts%secondsPerDay != 0 {
		day--
	}
	return day
}

// CompositePrice combines per-token price series into one pool price series.
//
// A single token series is returned as is (after dedup). With several tokens the
// price is the weighted sum of token prices at every timestamp where all tokens
// are observed. Weights that are missing, non-finite, negative or mismatched in
// count fall back to equal weighting; valid weights are normalized to sum to 1.
func CompositePrice(tokens []Series, weights []float64) Series {
	switch len(tokens) {
	case 0:
		return nil
	case 1:
		return tokens[0].Dedup()
	}

	w := NormalizeWeights(weights, len(tokens))

	values := make(map[int64][]float64)
	for i, token := range tokens {
		for _, p := range token.Dedup() {
			if math.IsNaN(p.Value) {
				continue
			}
			row, ok := values[p.Timestamp]
			if !ok {
				row = make([]float64, len(tokens))
				for k := range row {
					row[k] = math.NaN()
				}
				values[p.Timestamp] = row
			}
			row[i] = p.Value
		}
	}

	out := make(Series, 0, len(values))
	for ts, row := range values {
		sum := 0.0
		complete := true
		for i, v := range row {
			if math.IsNaN(v) {
				complete = false
				break
			}
			sum += w[i] * v
		}
		if complete {
			out = append(out, Point{Timestamp: ts, Value: sum})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// NormalizeWeights returns weights scaled to sum to 1, or equal weights when the
// input cannot be used for n tokens.
func NormalizeWeights(weights []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if len(weights) == n {
		sum := 0.0
		valid := true
		for _, w := range weights {
			if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				valid = false
				break
			}
			sum += w
		}
		if valid && sum > 0 {
			for i, w := range weights {
				out[i] = w / sum
			}
			return out
		}
	}
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}
