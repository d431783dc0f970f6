package domain

import (
	"time"
)

// Raw source field keys as delivered in the CSV header.
const (
	FieldTransactionID   = "TransactionId"
	FieldUserID          = "UserId"
	FieldTransactionTime = "TransactionTime"
	FieldItemCode        = "ItemCode"
	FieldItemDescription = "ItemDescription"
	FieldItemQuantity    = "NumberOfItemsPurchased"
	FieldCostPerItem     = "CostPerItem"
	FieldCountry         = "Country"
)

// RawField is one key/value pair of a delivered row, values kept as the
// raw strings read from the file.
type RawField struct {
	Key   string
	Value string
}

// RawRecord is a single delivered row. Fields preserve the source column
// order: the identity hash is computed over this exact ordering, so a
// reordered source file produces different hashes for logically identical
// rows (matches the upstream system's behavior).
type RawRecord struct {
	Fields []RawField
}

// Get returns the value for a field key.
func (r RawRecord) Get(key string) (string, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Keys returns the field keys in source order.
func (r RawRecord) Keys() []string {
	keys := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		keys[i] = f.Key
	}
	return keys
}

// StagedRecord is one row of the preload ledger. Immutable once written;
// the ledger is append-only and may hold the same hash many times across
// repeated deliveries.
type StagedRecord struct {
	ID              int64
	HashID          string
	SourceFile      string
	TransactionID   int64
	UserID          int64
	TransactionTime time.Time
	ItemCode        int64
	ItemDescription *string
	ItemQuantity    int64
	CostPerItem     float64
	Country         *string
	CreatedAt       time.Time
}

// Sentinel location values used when a country lookup fails.
const (
	UnknownCountryCode = "N/A"
	UnknownCountryName = "UNKNOWN"
	UnknownContinent   = "UNKNOWN"
)

// Location is a dim_location row. CountryName is the name as supplied by
// the source, not a normalized form; uniqueness is enforced on it at the
// storage layer.
type Location struct {
	ID          int64
	CountryCode string
	CountryName string
	Continent   string
}

// UnknownLocation returns the sentinel triple absorbing unresolved
// countries.
func UnknownLocation() Location {
	return Location{
		CountryCode: UnknownCountryCode,
		CountryName: UnknownCountryName,
		Continent:   UnknownContinent,
	}
}

// IsUnknown reports whether l is the sentinel triple.
func (l Location) IsUnknown() bool {
	return l.CountryName == UnknownCountryName
}

// Item is a dim_item row, keyed by the natural item code. First writer
// wins; rows are never updated once inserted.
type Item struct {
	Code        int64
	Description string
}

// DateRow is a dim_date row, keyed by the integer YYYYMMDD date id.
type DateRow struct {
	ID      int64
	Date    time.Time
	Year    int
	Quarter string
	Month   int
	Day     int
}

// DateID returns the integer YYYYMMDD id for a calendar date (UTC).
func DateID(t time.Time) int64 {
	u := t.UTC()
	return int64(u.Year())*10000 + int64(u.Month())*100 + int64(u.Day())
}

// NewDateRow derives the full dim_date row for a timestamp.
func NewDateRow(t time.Time) DateRow {
	u := t.UTC()
	return DateRow{
		ID:      DateID(u),
		Date:    time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC),
		Year:    u.Year(),
		Quarter: [4]string{"Q1", "Q2", "Q3", "Q4"}[(int(u.Month())-1)/3],
		Month:   int(u.Month()),
		Day:     u.Day(),
	}
}

// FactRecord is a fact_transaction row. HashID is the primary key, which
// makes committing the same logical transaction twice a no-op rather than
// a duplicate. CreatedAt is copied from the staged row: the fact table's
// max created_at is the pipeline's sole high-water mark.
type FactRecord struct {
	HashID          string
	TransactionID   int64
	UserID          int64
	DateID          int64
	TransactionTime time.Time
	ItemID          int64
	ItemQuantity    int64
	CostPerItem     float64
	TotalCost       float64
	LocationID      int64
	CreatedAt       time.Time
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID           string    `json:"runId"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
	FilesStaged     int       `json:"filesStaged"`
	RecordsStaged   int       `json:"recordsStaged"`
	RecordsArchived int       `json:"recordsArchived"`
	DeltaCount      int       `json:"deltaCount"`
	FactsCommitted  int       `json:"factsCommitted"`
	Error           string    `json:"error,omitempty"`
}
