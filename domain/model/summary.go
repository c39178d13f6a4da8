package model

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Summary describes the marginal posterior of one parameter.
type Summary struct {
	Parameter string  `json:"parameter"`
	Mean      float64 `json:"mean"`
	SD        float64 `json:"sd"`
	Median    float64 `json:"median"`
	Lower     float64 `json:"q2.5"`
	Upper     float64 `json:"q97.5"`
	Draws     int     `json:"draws"`
}

// Summarize computes mean, sample sd, median and the central 95% interval.
func Summarize(name string, draws []float64) (Summary, error) {
	data := stats.Float64Data(draws)
	s := Summary{Parameter: name, Draws: len(draws)}

	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, fmt.Errorf("summarize %s: %w", name, err)
	}
	if len(draws) > 1 {
		if s.SD, err = stats.StandardDeviationSample(data); err != nil {
			return s, fmt.Errorf("summarize %s: %w", name, err)
		}
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, fmt.Errorf("summarize %s: %w", name, err)
	}
	if s.Lower, err = stats.PercentileNearestRank(data, 2.5); err != nil {
		return s, fmt.Errorf("summarize %s: %w", name, err)
	}
	if s.Upper, err = stats.PercentileNearestRank(data, 97.5); err != nil {
		return s, fmt.Errorf("summarize %s: %w", name, err)
	}
	return s, nil
}

// SummarizeDraws summarizes theta0, tau and every eta component.
func SummarizeDraws(d Draws) ([]Summary, error) {
	out := make([]Summary, 0, 2+len(firstRow(d.Eta)))
	for _, p := range []struct {
		name  string
		draws []float64
	}{
		{"theta0", d.Theta0},
		{"tau", d.Tau},
	} {
		s, err := Summarize(p.name, p.draws)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	for j := range firstRow(d.Eta) {
		col := make([]float64, len(d.Eta))
		for i, row := range d.Eta {
			col[i] = row[j]
		}
		s, err := Summarize(fmt.Sprintf("eta[%d]", j+1), col)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func firstRow(m [][]float64) []float64 {
	if len(m) == 0 {
		return nil
	}
	return m[0]
}
