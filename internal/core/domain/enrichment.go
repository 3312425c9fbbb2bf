package domain

// Enrichment is a nonprofit-registry snapshot of an organization's latest filing.
type Enrichment struct {
	EIN            string   `json:"ein"`
	Name           string   `json:"name"`
	City           string   `json:"city,omitempty"`
	State          string   `json:"state,omitempty"`
	NTEECode       string   `json:"ntee_code,omitempty"`
	SubsectionCode string   `json:"subsection_code,omitempty"`
	TotalRevenue   *float64 `json:"total_revenue,omitempty"`
	TotalExpenses  *float64 `json:"total_expenses,omitempty"`
	TotalAssets    *float64 `json:"total_assets,omitempty"`
	TaxYear        *int     `json:"tax_year,omitempty"`
	NumFilings     int      `json:"num_filings"`
}
