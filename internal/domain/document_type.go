package domain

// DocumentType enumerates the supporting documents admins can request.
type DocumentType string

var documentTypeLabels = map[DocumentType]string{
	"bank_statement":         "Bank Statement",
	"tax_return":             "Tax Return",
	"quote_invoice":          "Quote/Invoice",
	"voided_check":           "Voided Check",
	"credit_card_statements": "Credit Card Statements",
	"profit_loss":            "Profit & Loss Statement",
	"balance_sheet":          "Balance Sheet",
	"debt_schedule":          "Debt Schedule",
	"property_docs":          "Property Documentation",
	"rent_roll":              "Rent Roll",
	"environmental_report":   "Environmental Report",
	"equipment_photos":       "Equipment Photos",
	"signed_application":     "Signed Application",
	"other":                  "Other",
}

// IsValid reports whether the document type is known.
func (d DocumentType) IsValid() bool {
	_, ok := documentTypeLabels[d]
	return ok
}

// Label returns the display name, or the raw token when unknown.
func (d DocumentType) Label() string {
	if label, ok := documentTypeLabels[d]; ok {
		return label
	}
	return string(d)
}
