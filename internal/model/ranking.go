package model

import (
	"cmp"
	"slices"
	"strconv"
)

// Rank sorts the classes by decreasing probability, ties broken by increasing class index,
// and numbers them from 0. Classes without a name in labels are named by their index.
func Rank(probs []float32, labels []string) Ranking {
	r := make(Ranking, len(probs))
	for i, p := range probs {
		label := strconv.Itoa(i)
		if i < len(labels) {
			label = labels[i]
		}
		r[i] = Scored{Class: i, Label: label, Probability: p}
	}
	slices.SortStableFunc(r, func(a, b Scored) int {
		if c := cmp.Compare(b.Probability, a.Probability); c != 0 {
			return c
		}
		return cmp.Compare(a.Class, b.Class)
	})
	for i := range r {
		r[i].Rank = i
	}
	return r
}

// Top returns the best scored class, or false for an empty ranking.
func (r Ranking) Top() (Scored, bool) {
	if len(r) == 0 {
		return Scored{}, false
	}
	return r[0], true
}

// Response builds the JSON response for a ranking.
func (r Ranking) Response() *PredictionResponse {
	resp := &PredictionResponse{
		Predictions: make(map[string]float32, len(r)),
		Ranking:     r,
	}
	if top, ok := r.Top(); ok {
		resp.Class = top.Label
		resp.Confidence = top.Probability
	}
	for _, s := range r {
		resp.Predictions[s.Label] = s.Probability
	}
	return resp
}
