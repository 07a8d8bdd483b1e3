package model

import "time"

// Source column names. The header row of the input file must use exactly
// these names; total, customer_id and vendor are optional columns.
const (
	ColDate       = "date"
	ColProduct    = "product"
	ColCategory   = "category"
	ColQuantity   = "quantity"
	ColUnitPrice  = "unit_price"
	ColTotal      = "total"
	ColCustomerID = "customer_id"
	ColRegion     = "region"
	ColVendor     = "vendor"
)

// RequiredColumns must all appear in the source header.
var RequiredColumns = []string{ColDate, ColProduct, ColCategory, ColQuantity, ColUnitPrice, ColRegion}

// OptionalColumns may appear in the source header.
var OptionalColumns = []string{ColTotal, ColCustomerID, ColVendor}

// RawRow is a single source line as read: column name -> original text,
// plus the verbatim line kept for rejection diagnostics.
type RawRow struct {
	LineNumber int               `json:"line_number"`
	Fields     map[string]string `json:"fields"`
	Raw        string            `json:"raw"`
}

// Get returns the original text for a column, "" if the row has no such cell.
func (r RawRow) Get(name string) string {
	return r.Fields[name]
}

// Has reports whether the row carries a cell for the column at all.
func (r RawRow) Has(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

// RejectionReason classifies why a row was routed to quarantine.
type RejectionReason string

const (
	ReasonMissingRequiredField RejectionReason = "MISSING_REQUIRED_FIELD"
	ReasonInvalidDate          RejectionReason = "INVALID_DATE"
	ReasonInvalidQuantity      RejectionReason = "INVALID_QUANTITY"
	ReasonInvalidPrice         RejectionReason = "INVALID_PRICE"
	ReasonTotalMismatch        RejectionReason = "TOTAL_MISMATCH"
	ReasonFieldTooLong         RejectionReason = "FIELD_TOO_LONG"
)

// NormalizedRecord is a fully validated sales record. Money is carried as
// integer cents so TotalCents == Quantity*UnitPriceCents holds exactly.
type NormalizedRecord struct {
	Date           time.Time `json:"date"`
	Product        string    `json:"product"`
	Category       string    `json:"category"`
	Quantity       int64     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	TotalCents     int64     `json:"total_cents"`
	CustomerID     string    `json:"customer_id"`
	Region         string    `json:"region"`
	Vendor         string    `json:"vendor"`
}

// UnitPrice returns the unit price in currency units.
func (r NormalizedRecord) UnitPrice() float64 {
	return float64(r.UnitPriceCents) / 100
}

// Total returns the line total in currency units.
func (r NormalizedRecord) Total() float64 {
	return float64(r.TotalCents) / 100
}

// RejectionEntry is one quarantined row. Terminal once written: rejected rows
// are never retried automatically.
type RejectionEntry struct {
	ExecutionID string          `json:"execution_id"`
	Raw         string          `json:"raw_data"`
	Reason      RejectionReason `json:"rejection_reason"`
	RejectedAt  time.Time       `json:"rejected_at"`
}

// RowResult is the outcome of classifying one raw row: exactly one of Record
// or Reason is set.
type RowResult struct {
	Record *NormalizedRecord
	Reason RejectionReason
}

// Accepted reports whether the row passed validation.
func (r RowResult) Accepted() bool {
	return r.Record != nil
}
