package models

import "time"

// LinkStatus is the lifecycle state of a SourceLink.
type LinkStatus string

const (
	LinkPending    LinkStatus = "pending"
	LinkProcessing LinkStatus = "processing"
	LinkCompleted  LinkStatus = "completed"
	LinkError      LinkStatus = "error"
)

// RawStatus is the lifecycle state of a RawProperty. A record is terminal
// once it leaves pending/processing and is never reprocessed automatically.
type RawStatus string

const (
	RawPending    RawStatus = "pending"
	RawProcessing RawStatus = "processing"
	RawCompleted  RawStatus = "completed"
	RawIgnored    RawStatus = "ignored"
	RawError      RawStatus = "error"
)

// PropertyType enumerates the supported property categories.
type PropertyType string

const (
	TypeApartment  PropertyType = "apartment"
	TypeHouse      PropertyType = "house"
	TypePenthouse  PropertyType = "penthouse"
	TypeCommercial PropertyType = "commercial"
	TypeLand       PropertyType = "land"
)

// PropertyStatus is the availability state of a canonical listing.
type PropertyStatus string

const (
	StatusAvailable    PropertyStatus = "available"
	StatusConstruction PropertyStatus = "construction"
)

// Origin records which extraction strategy supplied most of a record's fields.
type Origin string

const (
	OriginStructured Origin = "structured"
	OriginOpenGraph  Origin = "opengraph"
	OriginHeuristic  Origin = "heuristic"
	OriginDocument   Origin = "document"
	OriginAI         Origin = "ai"
)

// SourceLink is a seed describing one page to crawl. Links are never deleted,
// only reset back to pending for a new pass.
type SourceLink struct {
	ID              int64
	URL             string
	Category        string
	Status          LinkStatus
	UseBrowser      bool
	LastCrawledAt   *time.Time
	LastError       string
	PropertiesFound int
	CreatedAt       time.Time
}

// RawProperty is one scraped listing before refinement and promotion.
// Numeric fields are pointers: nil means the extractor found nothing
// plausible, which is distinct from an explicit zero.
type RawProperty struct {
	ID           string
	LinkID       int64
	SourceURL    string
	Title        string
	Description  string
	Price        *float64
	Area         *float64
	Bedrooms     *int
	Suites       *int
	Bathrooms    *int
	Parking      *int
	Address      string
	Neighborhood string
	City         string
	State        string
	Furnished    *bool
	Features     []string
	Images       []string
	Documents    []string
	Origin       Origin
	Status       RawStatus
	// NeedsProcessing stays true until the record is promoted or ignored,
	// so errored records remain eligible for a manual re-run.
	NeedsProcessing bool
	// PropertyCode is the canonical code created from this record. A non-empty
	// value guarantees at-most-once promotion.
	PropertyCode string
	LastError    string
	ScrapedAt    time.Time
	UpdatedAt    time.Time
}

// Address is the structured location of a canonical listing.
type Address struct {
	Street       string
	Neighborhood string
	City         string
	State        string
	Country      string
	Lat          *float64
	Lng          *float64
}

// Property is the refined, canonical listing record.
type Property struct {
	Code        string // IMV + 6-digit zero-padded counter
	Title       string
	Description string
	Price       float64
	Area        float64
	Address     Address
	Type        PropertyType
	Status      PropertyStatus
	Bedrooms    int
	Suites      int
	Bathrooms   int
	Parking     int
	Furnished   bool
	Features    []string
	Images      []string
	RawID       string
	Source      string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Partial is the all-optional output of a single extraction strategy.
// Partials are merged field-by-field with explicit priority; a nil field
// means "not found", never "zero".
type Partial struct {
	Title        string
	Description  string
	Price        *float64
	Area         *float64
	Bedrooms     *int
	Suites       *int
	Bathrooms    *int
	Parking      *int
	Address      string
	Neighborhood string
	City         string
	State        string
	Furnished    *bool
	Type         PropertyType
	Status       PropertyStatus
	Features     []string
	Images       []string
}

// FieldCount reports how many fields a partial actually filled. Used to pick
// the dominant extraction origin and to decide whether a page needs AI
// escalation.
func (p *Partial) FieldCount() int {
	n := 0
	if p.Title != "" {
		n++
	}
	if p.Description != "" {
		n++
	}
	for _, set := range []bool{
		p.Price != nil, p.Area != nil, p.Bedrooms != nil, p.Suites != nil,
		p.Bathrooms != nil, p.Parking != nil, p.Furnished != nil,
	} {
		if set {
			n++
		}
	}
	if p.Address != "" {
		n++
	}
	if p.Neighborhood != "" {
		n++
	}
	if len(p.Features) > 0 {
		n++
	}
	if len(p.Images) > 0 {
		n++
	}
	return n
}
