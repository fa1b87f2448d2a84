package ratings

import "math"

// Aggregate is a running reputation. It is only ever folded forward, never
// recomputed from the rating history.
type Aggregate struct {
	Sum     int     `json:"rating_sum"`
	Count   int     `json:"rating_count"`
	Average float64 `json:"rating"`
}

func (a Aggregate) Add(score int) Aggregate {
	a.Count++
	a.Sum += score
	a.Average = Round1(float64(a.Sum) / float64(a.Count))
	return a
}

func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
