package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linesmerrill/creator-discovery-api/api"
	"github.com/linesmerrill/creator-discovery-api/api/scheduler"
	"github.com/linesmerrill/creator-discovery-api/config"
	"github.com/linesmerrill/creator-discovery-api/databases"
	"github.com/linesmerrill/creator-discovery-api/pipeline"
)

// RequestTimeout bounds every non-streaming request
const RequestTimeout = 30 * time.Second

// App stores the router and the shared services, so they can be reused
type App struct {
	Router     *mux.Router
	Config     config.Config
	CreatorDB  databases.CreatorDatabase
	Store      pipeline.KeyValueStore
	Normalizer *pipeline.Normalizer
	Options    []pipeline.Option

	auth      *api.Authenticator
	metrics   *api.MetricsCollector
	hub       *SnapshotHub
	registry  *pipeline.Registry
	scheduler *scheduler.Scheduler
	client    databases.ClientHelper
	redis     *redis.Client
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	if a.auth == nil {
		a.auth = api.NewAuthenticator(a.Config.JWTSecret)
	}
	if a.metrics == nil {
		a.metrics = api.GetMetrics()
	}
	if a.hub == nil {
		a.hub = NewSnapshotHub()
	}
	if a.Normalizer == nil {
		a.Normalizer = pipeline.NewNormalizer(nil)
	}
	if a.registry == nil {
		a.registry = pipeline.NewRegistry(pipeline.RegistryConfig{
			DB:       a.CreatorDB,
			Store:    a.Store,
			Options:  append([]pipeline.Option{pipeline.WithNormalizer(a.Normalizer)}, a.Options...),
			OnChange: a.hub.Publish,
		})
	}

	c := Creator{Registry: a.registry, DB: a.CreatorDB, Normalizer: a.Normalizer}
	s := Stream{Hub: a.hub, Registry: a.registry}
	m := MetricsHandler{Metrics: a.metrics}
	auth := a.auth.Middleware

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware(a.metrics))
	r.Use(api.TimeoutMiddleware(RequestTimeout))

	// healthchex
	r.HandleFunc("/health", api.HealthCheckHandler).Methods("GET")
	r.Handle("/ws/creators", auth(http.HandlerFunc(s.StreamHandler))).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/creators", auth(http.HandlerFunc(c.SnapshotHandler))).Methods("GET")
	apiCreate.Handle("/creators/filters", auth(http.HandlerFunc(c.ApplyFiltersHandler))).Methods("POST")
	apiCreate.Handle("/creators/mode", auth(http.HandlerFunc(c.SwitchModeHandler))).Methods("PUT")
	apiCreate.Handle("/creators/sort", auth(http.HandlerFunc(c.SortHandler))).Methods("POST")
	apiCreate.Handle("/creators/page", auth(http.HandlerFunc(c.PageHandler))).Methods("PUT")
	apiCreate.Handle("/creators/page/next", auth(http.HandlerFunc(c.NextPageHandler))).Methods("POST")
	apiCreate.Handle("/creators/page/previous", auth(http.HandlerFunc(c.PreviousPageHandler))).Methods("POST")
	apiCreate.Handle("/creators/refresh", auth(http.HandlerFunc(c.RefreshHandler))).Methods("POST")
	apiCreate.Handle("/creators/{creator_id}", auth(http.HandlerFunc(c.CreatorByIDHandler))).Methods("GET")

	apiCreate.Handle("/metrics/summary", auth(http.HandlerFunc(m.GetMetricsSummary))).Methods("GET")
	apiCreate.Handle("/metrics/slow-queries", auth(http.HandlerFunc(m.GetSlowQueries))).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().Errorw("failed to create new client", "error", err)
		return err
	}
	if err = client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().Errorw("failed to connect to database", "error", err)
		return err
	}
	a.client = client
	a.CreatorDB = databases.NewCreatorDatabase(databases.NewDatabase(&a.Config, client))
	zap.S().Info("creator-discovery-api has connected to the database")

	a.redis, err = databases.NewRedisClient(ctx, &a.Config)
	if err != nil {
		zap.S().Errorw("failed to connect to redis", "addr", a.Config.RedisAddr, "error", err)
		return err
	}
	a.Store = databases.NewRedisStore(a.redis)

	var deriver pipeline.ThumbnailDeriver
	if a.Config.CloudinaryCloudName != "" {
		cld, err := pipeline.NewCloudinaryDeriver(a.Config.CloudinaryCloudName)
		if err != nil {
			return fmt.Errorf("failed to configure cloudinary: %w", err)
		}
		deriver = cld
	}
	a.Normalizer = pipeline.NewNormalizer(deriver)

	if a.Config.PrefetchThumbnails {
		a.Options = append(a.Options, pipeline.WithPrefetcher(pipeline.NewPrefetcher(nil)))
	}

	// initialize api router
	a.Router = a.New()

	a.scheduler = scheduler.NewScheduler(a.registry, a.Config.SessionIdleTimeout)
	return a.scheduler.Start()
}

// Close stops background jobs and releases connections
func (a *App) Close(ctx context.Context) {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.metrics != nil {
		a.metrics.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			zap.S().Warnw("failed to close redis client", "error", err)
		}
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().Warnw("failed to disconnect from database", "error", err)
		}
	}
}
