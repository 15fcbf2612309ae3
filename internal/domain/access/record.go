package access

import "time"

// Column names of the Section-valued and plain fields on an access record.
const (
	ColumnSourceControl = "access_sc"
	ColumnCICD          = "access_ci"
	ColumnOther         = "access_other"
	ColumnNotes         = "access_notes"
)

// OAuthColumnAllowed reports whether the column may be targeted by a provider
// authorization flow. Only the source-control section is live today.
func OAuthColumnAllowed(column string) bool {
	return column == ColumnSourceControl
}

// AccessRecord aggregates every access category for one owning identifier.
// Absence of a row is a valid state: callers receive EmptyRecord, never a
// not-found error.
type AccessRecord struct {
	ID            int64
	UID           string
	SourceControl Section
	CICD          Section
	Other         map[string]any
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EmptyRecord returns the canonical all-defaults record for uid.
func EmptyRecord(uid string) AccessRecord {
	return AccessRecord{
		UID:           uid,
		SourceControl: emptySection(),
		CICD:          emptySection(),
		Other:         map[string]any{},
	}
}

// Section returns the Section stored in the named column.
func (r AccessRecord) Section(column string) Section {
	switch column {
	case ColumnCICD:
		return r.CICD
	default:
		return r.SourceControl
	}
}

// SetSection replaces the Section stored in the named column.
func (r *AccessRecord) SetSection(column string, s Section) {
	switch column {
	case ColumnCICD:
		r.CICD = s
	default:
		r.SourceControl = s
	}
}
