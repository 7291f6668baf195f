package render

import "epschart/earnings"

// Row is one table line, already formatted for display.
type Row struct {
	EndingDate      string `json:"endingDate"`
	ReportDate      string `json:"reportDate"`
	Actual          string `json:"actual"`
	Estimate        string `json:"estimate"`
	Surprise        string `json:"surprise"`
	SurprisePercent string `json:"surprisePercent"`
}

// Rows builds one Row per index of s, in series order.
func Rows(s earnings.Series) []Row {
	rows := make([]Row, s.Len())
	for i := range rows {
		rows[i] = Row{
			EndingDate:      s.EndingDates[i],
			ReportDate:      s.ReportDates[i],
			Actual:          Currency(s.Actual[i]),
			Estimate:        Currency(s.Estimate[i]),
			Surprise:        SignedCurrency(s.Surprise[i]),
			SurprisePercent: SignedPercent(s.SurprisePercent[i]),
		}
	}
	return rows
}
