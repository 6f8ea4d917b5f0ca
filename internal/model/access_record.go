package model

// AccessRecord captures one verification attempt against a share link.
// Used for metrics aggregation only, never for gating.
type AccessRecord struct {
	ID          string `json:"id"`
	QuotationID string `json:"quotation_id"`
	IPAddress   string `json:"ip_address"`
	UserAgent   string `json:"user_agent"`
	AccessedAt  int64  `json:"accessed_at"`
	Attempts    int    `json:"attempts"`
	Successful  bool   `json:"successful"`
}
