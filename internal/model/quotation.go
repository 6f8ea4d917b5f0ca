package model

const (
	QuotationStatusPending  = "pending"
	QuotationStatusAccepted = "accepted"
	QuotationStatusRejected = "rejected"
)

type QuotationItem struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

type Quotation struct {
	ID              string          `json:"id"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	ServiceSummary  string          `json:"service_summary"`
	Items           []QuotationItem `json:"items"`
	Subtotal        int64           `json:"subtotal"`
	Discount        int64           `json:"discount"`
	Total           int64           `json:"total"`
	Status          string          `json:"status"`
	CustomerNote    string          `json:"customer_note"`
	RejectionReason string          `json:"rejection_reason"`
	Sharing         Sharing         `json:"sharing"`
	Ctime           int64           `json:"ctime"`
	Mtime           int64           `json:"mtime"`
}

// Sharing is the share-link field set carried on a quotation. The token is
// only meaningful while IsShared is true; revocation clears it so stale
// links stop resolving.
type Sharing struct {
	IsShared       bool   `json:"is_shared"`
	ShareToken     string `json:"share_token,omitempty"`
	SharedAt       int64  `json:"shared_at,omitempty"`
	SharedBy       string `json:"shared_by,omitempty"`
	AccessCount    int64  `json:"access_count"`
	LastAccessedAt int64  `json:"last_accessed_at,omitempty"`
}

// PublicQuotation is the customer-facing projection returned after a
// successful phone verification. No sharing metadata, no internal fields.
type PublicQuotation struct {
	ID              string          `json:"id"`
	CustomerName    string          `json:"customer_name"`
	ServiceSummary  string          `json:"service_summary"`
	Items           []QuotationItem `json:"items"`
	Subtotal        int64           `json:"subtotal"`
	Discount        int64           `json:"discount"`
	Total           int64           `json:"total"`
	Status          string          `json:"status"`
	CustomerNote    string          `json:"customer_note"`
	RejectionReason string          `json:"rejection_reason"`
}

func (q *Quotation) Public() *PublicQuotation {
	return &PublicQuotation{
		ID:              q.ID,
		CustomerName:    q.CustomerName,
		ServiceSummary:  q.ServiceSummary,
		Items:           q.Items,
		Subtotal:        q.Subtotal,
		Discount:        q.Discount,
		Total:           q.Total,
		Status:          q.Status,
		CustomerNote:    q.CustomerNote,
		RejectionReason: q.RejectionReason,
	}
}
