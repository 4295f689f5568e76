package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidMode is returned for a mode other than "ai" or "all"
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidSortField is returned for a field that cannot be sorted on
	ErrInvalidSortField = errors.New("invalid sort field")
)

// PageSize is the fixed number of creators per page
const PageSize = 24

// AIBatchSize caps the recommendation batch kept for AI mode
const AIBatchSize = 100

// Mode selects between the curated recommendation view and the full browse view
type Mode string

const (
	// ModeAI is the recommendation view, paginated over a bounded cached batch
	ModeAI Mode = "ai"
	// ModeAll is the full filtered browse view, paginated by the store
	ModeAll Mode = "all"
)

// ParseMode validates a mode string
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAI, ModeAll:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidMode, s)
}

// SortField is a sortable creator column. The zero value means store default order.
type SortField string

const (
	// SortNone keeps the store default order (followers descending)
	SortNone SortField = ""
	// SortMatchScore sorts by the client-assigned match score
	SortMatchScore SortField = "matchScore"
	// SortFollowers sorts by follower count
	SortFollowers SortField = "followers"
	// SortAvgViews sorts by average views
	SortAvgViews SortField = "avgViews"
	// SortEngagement sorts by engagement rate
	SortEngagement SortField = "engagement"
)

// ParseSortField validates a sort field name
func ParseSortField(s string) (SortField, error) {
	switch SortField(s) {
	case SortMatchScore, SortFollowers, SortAvgViews, SortEngagement:
		return SortField(s), nil
	}
	return SortNone, fmt.Errorf("%w %q", ErrInvalidSortField, s)
}

// MarshalJSON writes the empty field as null
func (f SortField) MarshalJSON() ([]byte, error) {
	if f == SortNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(f))
}

// UnmarshalJSON reads null as the empty field
func (f *SortField) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = SortNone
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*f = SortField(s)
	return nil
}

// SortDirection is asc or desc
type SortDirection string

const (
	// SortAsc sorts ascending
	SortAsc SortDirection = "asc"
	// SortDesc sorts descending
	SortDesc SortDirection = "desc"
)

// SortState is the active sort
type SortState struct {
	Field     SortField     `json:"field"`
	Direction SortDirection `json:"direction"`
}

// Range is an optional numeric min/max pair; nil bounds are open
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// IsZero reports whether the range constrains nothing
func (r *Range) IsZero() bool {
	return r == nil || (r.Min == nil && r.Max == nil)
}

// FilterCriteria holds the browse filters. Empty fields mean no constraint.
type FilterCriteria struct {
	Niches           []string `json:"niches,omitempty"`
	Platforms        []string `json:"platforms,omitempty"`
	Locations        []string `json:"locations,omitempty"`
	BuzzScoreBuckets []string `json:"buzzScoreBuckets,omitempty"`
	Followers        *Range   `json:"followers,omitempty"`
	Engagement       *Range   `json:"engagement,omitempty"`
	AvgViews         *Range   `json:"avgViews,omitempty"`
}

// PageState describes the current page window
type PageState struct {
	PageNumber int   `json:"pageNumber"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
	TotalCount int64 `json:"totalCount"`
}

// PipelineState is the persisted part of a creator pipeline
type PipelineState struct {
	Mode    Mode           `json:"mode"`
	Page    int            `json:"page"`
	Filters FilterCriteria `json:"filters"`
	Sort    SortState      `json:"sortState"`
}

// DefaultSortState is the sort used when nothing has been chosen
func DefaultSortState() SortState {
	return SortState{Field: SortNone, Direction: SortDesc}
}

// DefaultPipelineState is the state of a client that has never persisted anything
func DefaultPipelineState() PipelineState {
	return PipelineState{
		Mode:    ModeAI,
		Page:    1,
		Filters: FilterCriteria{},
		Sort:    DefaultSortState(),
	}
}

// Snapshot is the read-only view of a pipeline handed to presentation code
type Snapshot struct {
	Creators      []Creator      `json:"creators"`
	CurrentMode   Mode           `json:"currentMode"`
	CurrentPage   int            `json:"currentPage"`
	TotalPages    int            `json:"totalPages"`
	TotalCreators int64          `json:"totalCreators"`
	Niches        []string       `json:"niches"`
	Metrics       CreatorMetrics `json:"metrics"`
	Loading       bool           `json:"loading"`
	Error         string         `json:"error"`
	SortState     SortState      `json:"sortState"`
}

// Page returns the page window of the snapshot
func (s Snapshot) Page() PageState {
	return PageState{
		PageNumber: s.CurrentPage,
		PageSize:   PageSize,
		TotalPages: s.TotalPages,
		TotalCount: s.TotalCreators,
	}
}

// SnapshotResponse is the body returned by every pipeline endpoint
type SnapshotResponse struct {
	Snapshot
	Pagination PageState `json:"pagination"`
}

// NewSnapshotResponse wraps s with its page window
func NewSnapshotResponse(s Snapshot) SnapshotResponse {
	return SnapshotResponse{Snapshot: s, Pagination: s.Page()}
}

// ApplyFiltersRequest is the body of POST /creators/filters
type ApplyFiltersRequest struct {
	Filters FilterCriteria `json:"filters"`
	Mode    Mode           `json:"mode"`
}

// SwitchModeRequest is the body of PUT /creators/mode
type SwitchModeRequest struct {
	Mode Mode `json:"mode"`
}

// SortRequest is the body of POST /creators/sort
type SortRequest struct {
	Field SortField `json:"field"`
}

// PageRequest is the body of PUT /creators/page
type PageRequest struct {
	Page int `json:"page"`
}

// StreamEvent is one message on the snapshot WebSocket
type StreamEvent struct {
	Event string           `json:"event"`
	Data  SnapshotResponse `json:"data"`
}
