package backend

import (
	"net/url"

	"github.com/wansing/moderation/core"
)

type FilterOption struct {
	Value string // empty means no restriction
	Title string
}

// A Filter restricts the moderation queue by one query parameter.
type Filter interface {
	Param() string
	Title() string
	Options(db *core.CoreDB) []FilterOption
	Apply(value string, filter *core.QueueFilter)
}

// DefaultFilters returns the status filter followed by the type filter.
func DefaultFilters() []Filter {
	return []Filter{StatusFilter{}, TypeFilter{}}
}

// StatusFilter restricts the queue to pending or rejected entities. Approved entities are not offered.
type StatusFilter struct{}

func (StatusFilter) Param() string {
	return "status"
}

func (StatusFilter) Title() string {
	return "Moderation status"
}

func (StatusFilter) Options(*core.CoreDB) []FilterOption {
	return []FilterOption{
		{"", "All"},
		{core.Pending.String(), "Pending"},
		{core.Rejected.String(), "Rejected"},
	}
}

func (StatusFilter) Apply(value string, filter *core.QueueFilter) {
	if status, err := core.ParseStatus(value); err == nil && status != core.Approved {
		filter.Statuses = []core.Status{status}
	}
}

// TypeFilter restricts the queue to one registered type.
type TypeFilter struct{}

func (TypeFilter) Param() string {
	return "type"
}

func (TypeFilter) Title() string {
	return "Type"
}

func (TypeFilter) Options(db *core.CoreDB) []FilterOption {
	var options = []FilterOption{{"", "All"}}
	for _, t := range db.Policies.All() {
		options = append(options, FilterOption{t, t})
	}
	return options
}

func (TypeFilter) Apply(value string, filter *core.QueueFilter) {
	filter.Type = value
}

// queueFilter applies the filters in order.
func queueFilter(filters []Filter, query url.Values) core.QueueFilter {
	var filter core.QueueFilter
	for _, f := range filters {
		if value := query.Get(f.Param()); value != "" {
			f.Apply(value, &filter)
		}
	}
	return filter
}
