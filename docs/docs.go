// Package docs Creator Discovery API.
//
// Documentation of the Creator Discovery API. Every /api/v1 route needs a bearer
// token whose sub claim identifies the caller; pipeline state is kept per caller.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - bearer
//
//    SecurityDefinitions:
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/creator-discovery-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/v1/creators creators creatorSnapshot
// Gets the caller's current creator page, metrics and pipeline state.
// responses:
//   200: snapshotResponse

// swagger:route POST /api/v1/creators/filters creators applyFilters
// Replaces the filters and mode and returns page 1.
// responses:
//   200: snapshotResponse

// swagger:route PUT /api/v1/creators/mode creators switchMode
// Switches between the ai and all views.
// responses:
//   200: snapshotResponse

// swagger:route POST /api/v1/creators/sort creators sortCreators
// Sorts by a field; repeating the active field flips the direction.
// responses:
//   200: snapshotResponse

// swagger:route PUT /api/v1/creators/page creators changePage
// Jumps to a page, clamped to the available pages.
// responses:
//   200: snapshotResponse

// swagger:route POST /api/v1/creators/page/next creators nextPage
// Moves forward one page when there is one.
// responses:
//   200: snapshotResponse

// swagger:route POST /api/v1/creators/page/previous creators previousPage
// Moves back one page when there is one.
// responses:
//   200: snapshotResponse

// swagger:route POST /api/v1/creators/refresh creators refreshCreators
// Re-runs the page and metrics queries with the current state.
// responses:
//   200: snapshotResponse

// A snapshot of the caller's pipeline. Failed queries are reported in the error
// field while the previous results stay in place.
// swagger:response snapshotResponse
type snapshotResponseWrapper struct {
	// in:body
	Body models.SnapshotResponse
}

// swagger:parameters applyFilters
type applyFiltersParamsWrapper struct {
	// in:body
	Body models.ApplyFiltersRequest
}

// swagger:parameters switchMode
type switchModeParamsWrapper struct {
	// in:body
	Body models.SwitchModeRequest
}

// swagger:parameters sortCreators
type sortParamsWrapper struct {
	// in:body
	Body models.SortRequest
}

// swagger:parameters changePage
type pageParamsWrapper struct {
	// in:body
	Body models.PageRequest
}

// swagger:route GET /api/v1/creators/{creator_id} creators creatorByID
// Gets a single normalized creator by ID.
// responses:
//   200: creatorByIDResponse

// Shows a single creator by the given {creator_id}
// swagger:response creatorByIDResponse
type creatorByIDResponseWrapper struct {
	// in:body
	Body models.CreatorResponse
}
