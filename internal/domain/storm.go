package domain

import "time"

// Region is one geographic advisory feed source. Regions are loaded from
// configuration at startup and never mutated by the pipeline.
type Region struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	FeedURL string `yaml:"feed_url" json:"feed_url"`
	Active  bool   `yaml:"active" json:"active"`
}

// RawAdvisory is one feed entry as extracted by the parser: field name to raw
// text, before any typing. Absent optional elements are simply absent keys.
type RawAdvisory map[string]string

// RawAdvisory field keys. These mirror the NHC element local names, plus the
// standard RSS item fields.
const (
	FieldATCF        = "atcf"
	FieldName        = "name"
	FieldType        = "type"
	FieldWallet      = "wallet"
	FieldMovement    = "movement"
	FieldHeadline    = "headline"
	FieldCenter      = "center"
	FieldPressure    = "pressure"
	FieldWind        = "wind"
	FieldDatetime    = "datetime"
	FieldTitle       = "title"
	FieldLink        = "link"
	FieldDescription = "description"
	FieldGUID        = "guid"
	FieldPubDate     = "pubDate"
)

// StormType is the enumerated storm classification.
type StormType string

const (
	TypeHurricane          StormType = "HURRICANE"
	TypeTropicalStorm      StormType = "TROPICAL STORM"
	TypeTropicalDepression StormType = "TROPICAL DEPRESSION"
	TypePostTropical       StormType = "POST-TROPICAL"
	TypeUnknown            StormType = "UNKNOWN"
)

// Status is the lifecycle state of a tracked storm.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Observation is the canonical, typed form of a single advisory for one
// storm. It is ephemeral: produced per parse, consumed by the reconciler.
// Position, wind speed, and pressure are nil when the feed text could not be
// parsed; StormID and ReportTime are mandatory and enforced by
// [NormalizeAdvisory].
type Observation struct {
	StormID    string    `json:"storm_id"`
	RegionID   string    `json:"region_id"`
	Season     int       `json:"season"`
	Name       string    `json:"storm_name"`
	StormType  StormType `json:"storm_type"`
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	Movement   string    `json:"movement,omitempty"`
	WindSpeed  *int      `json:"wind_speed"` // sustained wind, MPH
	Pressure   *int      `json:"pressure"`   // central pressure, mb
	Headline   string    `json:"headline,omitempty"`
	Report     string    `json:"report,omitempty"`
	ReportLink string    `json:"report_link,omitempty"`
	ReportTime time.Time `json:"report_date"` // UTC
	Wallet     string    `json:"wallet,omitempty"`
	WalletURL  string    `json:"wallet_url,omitempty"`
}

// StormState is the persisted current-state row for one storm identifier.
// Fields are overwritten with the latest observation on every reconcile;
// MissedCycles counts consecutive ingestion cycles in which an active storm
// was absent from its region's feed, driving the inactive sweep.
type StormState struct {
	Observation

	Status       Status    `json:"status"`
	MissedCycles int       `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StormFilter narrows storm queries on the read surface. Zero values mean
// "no filter".
type StormFilter struct {
	Status       string
	Season       int
	StormType    string
	MinWindSpeed int
	RegionID     string
	Name         string
	Limit        int
	Offset       int
}

// HistoryEntry is an immutable snapshot of an observation at the moment it
// was reconciled. History rows are append-only: the pipeline never updates or
// deletes them.
type HistoryEntry struct {
	Observation

	Status     Status    `json:"status"`
	RecordedAt time.Time `json:"recorded_at"`
}
