package frontier

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Asset identifies one pool in the statistics pipeline.
type Asset struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
}

// PoolSeries is the raw, unaligned input for one pool.
type PoolSeries struct {
	Asset
	Price  Series
	TVL    Series
	Reward Series
}

// Exclusion records an asset dropped from a run and why.
type Exclusion struct {
	Asset  Asset  `json:"asset"`
	Reason string `json:"reason"`
}

// Window holds pools aligned on one gap-free daily index.
//
// Price, TVL and Reward have one value per Index entry. HODL and APY are daily
// returns and have one value fewer: row r is the change from Index[r] to Index[r+1].
// All per-asset slices are ordered like Assets.
type Window struct {
	Assets []Asset
	Index  []time.Time

	Price  [][]float64
	TVL    [][]float64
	Reward [][]float64

	HODL [][]float64
	APY  [][]float64

	Excluded []Exclusion
}

type dailyPool struct {
	price, tvl, reward map[int64]float64
}

// Reconstruct resamples raw pool series to daily values over the trailing window
// of the given number of days and derives HODL and APY returns.
//
// Pools without a price, TVL or reward value on the last day of the window are
// excluded. Remaining gaps are filled by linear interpolation with flat edges.
// A non-positive days value keeps the full history.
func Reconstruct(pools []PoolSeries, days int) *Window {
	w := &Window{}

	dailies := make([]dailyPool, len(pools))
	var first, last int64
	seen := false
	for i, pool := range pools {
		d := dailyPool{
			price:  pool.Price.daily(),
			tvl:    pool.TVL.daily(),
			reward: pool.Reward.daily(),
		}
		dailies[i] = d
		for _, m := range []map[int64]float64{d.price, d.tvl, d.reward} {
			for day := range m {
				if !seen || day < first {
					first = day
				}
				if !seen || day > last {
					last = day
				}
				seen = true
			}
		}
	}
	if !seen {
		for _, pool := range pools {
			w.Excluded = append(w.Excluded, Exclusion{Asset: pool.Asset, Reason: "no observations"})
		}
		return w
	}

	start := first
	if days > 0 && last-int64(days)+1 > start {
		start = last - int64(days) + 1
	}
	for day := start; day <= last; day++ {
		w.Index = append(w.Index, time.Unix(day*secondsPerDay, 0).UTC())
	}

	for i, pool := range pools {
		d := dailies[i]
		if !hasDay(d.price, last) || !hasDay(d.tvl, last) || !hasDay(d.reward, last) {
			w.Excluded = append(w.Excluded, Exclusion{Asset: pool.Asset, Reason: "missing final observation"})
			continue
		}

		price := interpolate(d.price, start, last)
		tvl := interpolate(d.tvl, start, last)
		reward := interpolate(d.reward, start, last)
		hodl, apy := dailyReturns(price, tvl, reward)

		w.Assets = append(w.Assets, pool.Asset)
		w.Price = append(w.Price, price)
		w.TVL = append(w.TVL, tvl)
		w.Reward = append(w.Reward, reward)
		w.HODL = append(w.HODL, hodl)
		w.APY = append(w.APY, apy)
	}

	return w
}

func hasDay(values map[int64]float64, day int64) bool {
	_, ok := values[day]
	return ok
}

// interpolate lays values on [start, end] and fills gaps linearly between known
// days, repeating the nearest known value beyond the first and last ones.
func interpolate(values map[int64]float64, start, end int64) []float64 {
	n := int(end - start + 1)
	out := make([]float64, n)
	known := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if v, ok := values[start+int64(i)]; ok {
			out[i] = v
			known = append(known, i)
		} else {
			out[i] = math.NaN()
		}
	}
	if len(known) == 0 {
		return out
	}

	for i := 0; i < known[0]; i++ {
		out[i] = out[known[0]]
	}
	for i := known[len(known)-1] + 1; i < n; i++ {
		out[i] = out[known[len(known)-1]]
	}
	for k := 1; k < len(known); k++ {
		lo, hi := known[k-1], known[k]
		span := float64(hi - lo)
		for i := lo + 1; i < hi; i++ {
			frac := float64(i-lo) / span
			out[i] = out[lo] + frac*(out[hi]-out[lo])
		}
	}
	return out
}

func dailyReturns(price, tvl, reward []float64) (hodl, apy []float64) {
	if len(price) < 2 {
		return []float64{}, []float64{}
	}
	hodl = make([]float64, len(price)-1)
	apy = make([]float64, len(price)-1)
	for t := 1; t < len(price); t++ {
		hodl[t-1] = finiteOrZero(price[t]/price[t-1] - 1)
		apy[t-1] = finiteOrZero((reward[t] - reward[t-1]) / tvl[t-1])
	}
	return hodl, apy
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Days returns the number of daily return rows.
func (w *Window) Days() int {
	if len(w.Index) < 2 {
		return 0
	}
	return len(w.Index) - 1
}

// Total returns HODL plus APY as a days x assets matrix, or nil when empty.
func (w *Window) Total() *mat.Dense {
	rows, cols := w.Days(), len(w.Assets)
	if rows == 0 || cols == 0 {
		return nil
	}
	out := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			out.Set(i, j, w.HODL[j][i]+w.APY[j][i])
		}
	}
	return out
}

// Slice returns a window holding return rows [from, to) for the same assets.
func (w *Window) Slice(from, to int) *Window {
	days := w.Days()
	if from < 0 {
		from = 0
	}
	if to > days {
		to = days
	}
	if from > to {
		from = to
	}

	out := &Window{
		Assets:   append([]Asset(nil), w.Assets...),
		Excluded: append([]Exclusion(nil), w.Excluded...),
	}
	if days == 0 {
		out.Index = append([]time.Time(nil), w.Index...)
		out.Price, out.TVL, out.Reward = w.Price, w.TVL, w.Reward
		out.HODL, out.APY = w.HODL, w.APY
		return out
	}
	out.Index = append([]time.Time(nil), w.Index[from:to+1]...)
	for j := range w.Assets {
		out.Price = append(out.Price, w.Price[j][from:to+1])
		out.TVL = append(out.TVL, w.TVL[j][from:to+1])
		out.Reward = append(out.Reward, w.Reward[j][from:to+1])
		out.HODL = append(out.HODL, w.HODL[j][from:to])
		out.APY = append(out.APY, w.APY[j][from:to])
	}
	return out
}

// Select returns a window restricted to the given assets, in the given order.
// Unknown ids are ignored.
func (w *Window) Select(ids []string) *Window {
	pos := make(map[string]int, len(w.Assets))
	for i, a := range w.Assets {
		pos[a.ID] = i
	}
	out := &Window{
		Index:    append([]time.Time(nil), w.Index...),
		Excluded: append([]Exclusion(nil), w.Excluded...),
	}
	for _, id := range ids {
		j, ok := pos[id]
		if !ok {
			continue
		}
		out.Assets = append(out.Assets, w.Assets[j])
		out.Price = append(out.Price, w.Price[j])
		out.TVL = append(out.TVL, w.TVL[j])
		out.Reward = append(out.Reward, w.Reward[j])
		out.HODL = append(out.HODL, w.HODL[j])
		out.APY = append(out.APY, w.APY[j])
	}
	return out
}
