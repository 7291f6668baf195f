package earnings

import (
	"github.com/shopspring/decimal"
)

// Record is one fiscal quarter as reported, in upstream order.
type Record struct {
	FiscalDateEnding   string
	ReportedDate       string
	ReportedEPS        decimal.NullDecimal
	EstimatedEPS       decimal.NullDecimal
	Surprise           decimal.NullDecimal
	SurprisePercentage decimal.NullDecimal
}

// Series holds six index-aligned columns derived from a []Record: index i of
// every slice describes the same quarter.
type Series struct {
	Symbol          string                `json:"symbol"`
	EndingDates     []string              `json:"endingDates"`
	ReportDates     []string              `json:"reportDates"`
	Actual          []decimal.NullDecimal `json:"actual"`
	Estimate        []decimal.NullDecimal `json:"estimate"`
	Surprise        []decimal.NullDecimal `json:"surprise"`
	SurprisePercent []decimal.NullDecimal `json:"surprisePercent"`
}

func (s Series) Len() int {
	return len(s.EndingDates)
}

// Aligned reports whether all six columns have the same length.
func (s Series) Aligned() bool {
	n := len(s.EndingDates)
	return len(s.ReportDates) == n &&
		len(s.Actual) == n &&
		len(s.Estimate) == n &&
		len(s.Surprise) == n &&
		len(s.SurprisePercent) == n
}

// Normalize maps records 1:1 into a Series, keeping their order.
func Normalize(symbol string, records []Record) Series {
	s := Series{
		Symbol:          symbol,
		EndingDates:     make([]string, 0, len(records)),
		ReportDates:     make([]string, 0, len(records)),
		Actual:          make([]decimal.NullDecimal, 0, len(records)),
		Estimate:        make([]decimal.NullDecimal, 0, len(records)),
		Surprise:        make([]decimal.NullDecimal, 0, len(records)),
		SurprisePercent: make([]decimal.NullDecimal, 0, len(records)),
	}
	for _, r := range records {
		s.EndingDates = append(s.EndingDates, r.FiscalDateEnding)
		s.ReportDates = append(s.ReportDates, r.ReportedDate)
		s.Actual = append(s.Actual, r.ReportedEPS)
		s.Estimate = append(s.Estimate, r.EstimatedEPS)
		s.Surprise = append(s.Surprise, r.Surprise)
		s.SurprisePercent = append(s.SurprisePercent, r.SurprisePercentage)
	}
	return s
}
