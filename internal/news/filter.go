package news

import (
	"strconv"
	"strings"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ListParams are raw listing parameters as received from a query string or CLI flags.
type ListParams struct {
	Source   string
	Province string
	Category string
	CityID   string
	SourceID string
	AIOnly   string
	Q        string
	Limit    string
	Offset   string
	Order    string
}

// FilterSpec is the bounded, normalized form of ListParams.
// Zero-valued string fields mean "no constraint".
type FilterSpec struct {
	Source   string
	Province string
	Category string
	CityID   *int64
	SourceID string
	AIOnly   bool
	Q        string
	Limit    int
	Offset   int
	Order    Order
}

// BuildFilter clamps paging values to their defaults instead of rejecting them.
// Only a malformed city id is reported as a validation error.
func BuildFilter(p ListParams) (FilterSpec, error) {
	spec := FilterSpec{
		Source:   strings.TrimSpace(p.Source),
		Province: strings.TrimSpace(p.Province),
		Category: strings.TrimSpace(p.Category),
		SourceID: strings.TrimSpace(p.SourceID),
		AIOnly:   ParseBoolish(p.AIOnly, false),
		Q:        strings.TrimSpace(p.Q),
		Limit:    parseLimit(p.Limit),
		Offset:   parseOffset(p.Offset),
		Order:    parseOrder(p.Order),
	}

	if raw := strings.TrimSpace(p.CityID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return FilterSpec{}, NewValidationError("city_id", "must be a positive integer")
		}
		spec.CityID = &id
	}

	return spec, nil
}

// ParseBoolish accepts 1/true/yes/on and 0/false/no/off, returning fallback otherwise.
func ParseBoolish(raw string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// Match applies the filter predicates to a single record.
func (f FilterSpec) Match(r Record) bool {
	if f.Source != "" && r.SourceName != f.Source {
		return false
	}
	if f.Province != "" && strings.ToLower(r.ProvinceName) != strings.ToLower(f.Province) {
		return false
	}
	if f.Category != "" && string(r.Category) != f.Category {
		return false
	}
	if f.CityID != nil && (r.CityID == nil || *r.CityID != *f.CityID) {
		return false
	}
	if f.SourceID != "" && (r.SourceID == nil || *r.SourceID != f.SourceID) {
		return false
	}
	if f.AIOnly && !r.HasGeneratedText() {
		return false
	}
	if f.Q != "" && !matchesText(r, f.Q) {
		return false
	}
	return true
}

// Less orders records by effective time in the filter's direction with
// insertion order as the tie-break.
func (f FilterSpec) Less(a, b Record) bool {
	ta, tb := a.EffectiveTime(), b.EffectiveTime()
	if f.Order == OrderAsc {
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return a.Seq < b.Seq
	}
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return a.Seq > b.Seq
}

func matchesText(r Record, q string) bool {
	needle := strings.ToLower(q)
	contains := func(value string) bool {
		return strings.Contains(strings.ToLower(value), needle)
	}

	if contains(r.Title) {
		return true
	}
	if r.Summary != nil && contains(*r.Summary) {
		return true
	}
	if r.GeneratedText != nil && contains(*r.GeneratedText) {
		return true
	}
	for _, tag := range r.Tags {
		if contains(tag) {
			return true
		}
	}
	return false
}

func parseLimit(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 1 || value > MaxLimit {
		return DefaultLimit
	}
	return value
}

func parseOffset(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func parseOrder(raw string) Order {
	if strings.EqualFold(strings.TrimSpace(raw), string(OrderAsc)) {
		return OrderAsc
	}
	return OrderDesc
}
