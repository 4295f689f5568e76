package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/creator-discovery-api/api"
	"github.com/linesmerrill/creator-discovery-api/config"
	"github.com/linesmerrill/creator-discovery-api/databases"
	"github.com/linesmerrill/creator-discovery-api/models"
	"github.com/linesmerrill/creator-discovery-api/pipeline"
)

var errNoOwner = errors.New("request has no owner")

// Creator exported for testing purposes
type Creator struct {
	Registry   *pipeline.Registry
	DB         databases.CreatorDatabase
	Normalizer *pipeline.Normalizer
}

// SnapshotHandler returns the caller's current pipeline snapshot
func (c Creator) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	c.withPipeline(w, r, func(ctx context.Context, p *pipeline.Pipeline) models.Snapshot {
		return p.Snapshot()
	})
}

// ApplyFiltersHandler replaces filters and mode and returns page 1. Without a
// mode in the body the caller stays in its current mode.
func (c Creator) ApplyFiltersHandler(w http.ResponseWriter, r *http.Request) {
	var body models.ApplyFiltersRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	c.withPipeline(w, r, func(ctx context.Context, p *pipeline.Pipeline) models.Snapshot {
		mode := body.Mode
		if mode == "" {
			mode = p.State().Mode
		}
		return p.ApplyFilters(ctx, body.Filters, mode)
	})
}

// SwitchModeHandler switches between the AI and browse views
func (c Creator) SwitchModeHandler(w http.ResponseWriter, r *http.Request) {
	var body models.SwitchModeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	c.withPipeline(w, r, func(ctx context.Context, p *pipeline.Pipeline) models.Snapshot {
		return p.SwitchMode(ctx, body.Mode)
	})
}

// SortHandler sorts by a field, toggling the direction when it is already active
func (c Creator) SortHandler(w http.ResponseWriter, r *http.Request) {
	var body models.SortRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	c.withPipeline(w, r, func(ctx context.Context, p *pipeline.Pipeline) models.Snapshot {
		return p.HandleSort(ctx, body.Field)
	})
}

// PageHandler jumps to a page
func (c Creator) PageHandler(w http.ResponseWriter, r *http.Request) {
	var body models.PageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	c.withPipeline(w, r, func(ctx context.Context, p *pipeline.Pipeline) models.Snapshot {
		return p.HandlePageChange(ctx, body.Page)
	})
}

// NextPageHandler moves one page forward
func (c Creator) NextPageHandler(w http.ResponseWriter, r *http.Request) {
	c.withPipeline(w, r, func(ctx context.Context, p *pipeline.Pipeline) models.Snapshot {
		return p.NextPage(ctx)
	})
}

// PreviousPageHandler moves one page back
func (c Creator) PreviousPageHandler(w http.ResponseWriter, r *http.Request) {
	c.withPipeline(w, r, func(ctx context.Context, p *pipeline.Pipeline) models.Snapshot {
		return p.PreviousPage(ctx)
	})
}

// RefreshHandler re-runs the active queries
func (c Creator) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	c.withPipeline(w, r, func(ctx context.Context, p *pipeline.Pipeline) models.Snapshot {
		return p.Refresh(ctx)
	})
}

// CreatorByIDHandler returns one normalized creator
func (c Creator) CreatorByIDHandler(w http.ResponseWriter, r *http.Request) {
	creatorID := mux.Vars(r)["creator_id"]

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	raw, err := c.DB.FindOne(ctx, creatorIDFilter(creatorID))
	if errors.Is(err, mongo.ErrNoDocuments) {
		config.ErrorStatus("creator not found", http.StatusNotFound, w, fmt.Errorf("no creator with id %q", creatorID))
		return
	}
	if err != nil {
		config.ErrorStatus("failed to get creator by ID", http.StatusInternalServerError, w, err)
		return
	}

	normalizer := c.Normalizer
	if normalizer == nil {
		normalizer = pipeline.NewNormalizer(nil)
	}
	writeJSON(w, models.CreatorResponse{Success: true, Creator: normalizer.Transform(raw)})
}

// creatorIDFilter matches either an ObjectID or a plain string id
func creatorIDFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

func (c Creator) withPipeline(w http.ResponseWriter, r *http.Request, op func(context.Context, *pipeline.Pipeline) models.Snapshot) {
	owner, ok := api.OwnerFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, errNoOwner)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	p := c.Registry.Get(ctx, owner)
	writeJSON(w, models.NewSnapshotResponse(op(ctx, p)))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
