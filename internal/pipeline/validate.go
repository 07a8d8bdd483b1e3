package pipeline

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go-sales-etl/internal/model"
)

// Declared maximum lengths of the target columns.
const (
	maxProductLen    = 100
	maxCategoryLen   = 50
	maxRegionLen     = 50
	maxCustomerIDLen = 20
	maxVendorLen     = 100
)

// Defaults filled in for empty optional fields on accepted records.
const (
	defaultVendor     = "Sin asignar"
	defaultCustomerID = "CLI-00000"
)

var dateLayouts = []string{"2006-01-02", "02/01/2006"}

// Classify is the single source of truth for row acceptance. Rules run in a
// fixed order and the first failing rule determines the rejection reason:
//
//  1. required fields present and non-empty
//  2. date parses
//  3. quantity is an integer > 0
//  4. unit price is a non-negative decimal with at most 2 fractional digits
//  5. a provided total must equal quantity x unit price exactly
//  6. string fields within their declared maximum lengths
//
// Classify never returns an error: malformed input always maps to a reason.
func Classify(row model.RawRow) model.RowResult {
	for _, col := range model.RequiredColumns {
		if strings.TrimSpace(row.Get(col)) == "" {
			return rejected(model.ReasonMissingRequiredField)
		}
	}

	date, ok := parseDate(strings.TrimSpace(row.Get(model.ColDate)))
	if !ok {
		return rejected(model.ReasonInvalidDate)
	}

	quantity, err := strconv.ParseInt(strings.TrimSpace(row.Get(model.ColQuantity)), 10, 64)
	if err != nil || quantity <= 0 {
		return rejected(model.ReasonInvalidQuantity)
	}

	priceCents, ok := parseCents(strings.TrimSpace(row.Get(model.ColUnitPrice)))
	if !ok || priceCents < 0 {
		return rejected(model.ReasonInvalidPrice)
	}

	totalCents := quantity * priceCents
	if provided := strings.TrimSpace(row.Get(model.ColTotal)); provided != "" {
		providedCents, ok := parseCents(provided)
		if !ok || providedCents != totalCents {
			return rejected(model.ReasonTotalMismatch)
		}
	}

	product := strings.TrimSpace(row.Get(model.ColProduct))
	category := strings.TrimSpace(row.Get(model.ColCategory))
	region := titleCase(strings.TrimSpace(row.Get(model.ColRegion)))
	customerID := strings.TrimSpace(row.Get(model.ColCustomerID))
	vendor := strings.TrimSpace(row.Get(model.ColVendor))

	// Limits mirror the target VARCHAR(n) columns, which count characters;
	// the source data is Spanish, so multibyte text is the normal case.
	if utf8.RuneCountInString(product) > maxProductLen ||
		utf8.RuneCountInString(category) > maxCategoryLen ||
		utf8.RuneCountInString(region) > maxRegionLen ||
		utf8.RuneCountInString(customerID) > maxCustomerIDLen ||
		utf8.RuneCountInString(vendor) > maxVendorLen {
		return rejected(model.ReasonFieldTooLong)
	}

	if customerID == "" {
		customerID = defaultCustomerID
	}
	if vendor == "" {
		vendor = defaultVendor
	}

	return model.RowResult{Record: &model.NormalizedRecord{
		Date:           date,
		Product:        product,
		Category:       category,
		Quantity:       quantity,
		UnitPriceCents: priceCents,
		TotalCents:     totalCents,
		CustomerID:     customerID,
		Region:         region,
		Vendor:         vendor,
	}}
}

func rejected(reason model.RejectionReason) model.RowResult {
	return model.RowResult{Reason: reason}
}

func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseCents parses a decimal amount with at most two fractional digits into
// integer cents. Returns false for anything else, including scientific
// notation or a third decimal place.
func parseCents(value string) (int64, bool) {
	if value == "" {
		return 0, false
	}
	negative := false
	switch value[0] {
	case '-':
		negative = true
		value = value[1:]
	case '+':
		value = value[1:]
	}

	whole, frac := value, ""
	if i := strings.IndexByte(value, '.'); i >= 0 {
		whole, frac = value[:i], value[i+1:]
	}
	// The sign was consumed above; both parts must be bare digits so inputs
	// like "3.-5" or "--5" cannot sneak through ParseInt's sign handling.
	if whole == "" || len(frac) > 2 || !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, false
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	cents := units * 100

	if frac != "" {
		for len(frac) < 2 {
			frac += "0"
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, false
		}
		cents += f
	}
	if negative {
		cents = -cents
	}
	return cents, true
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// titleCase capitalizes the first letter of each space-separated word, the
// normalization the region column gets before storage.
func titleCase(value string) string {
	words := strings.Fields(value)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
