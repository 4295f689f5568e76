package config

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/linesmerrill/creator-discovery-api/models"
)

// Config holds the project config values
type Config struct {
	URL                 string
	DatabaseName        string
	BaseURL             string
	Port                string
	Environment         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	JWTSecret           string
	CloudinaryCloudName string
	PrefetchThumbnails  bool
	SessionIdleTimeout  time.Duration
}

// New sets up all config related services
func New() *Config {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	//setup zap logger and replace default logger
	logger, err := setLogger(v.GetString("ENVIRONMENT"))
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		URL:                 v.GetString("DB_URI"),
		DatabaseName:        v.GetString("DB_NAME"),
		BaseURL:             v.GetString("BASE_URL"),
		Port:                v.GetString("PORT"),
		Environment:         v.GetString("ENVIRONMENT"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisDB:             v.GetInt("REDIS_DB"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		CloudinaryCloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
		PrefetchThumbnails:  v.GetBool("PREFETCH_THUMBNAILS"),
		SessionIdleTimeout:  time.Duration(v.GetInt("SESSION_IDLE_MINUTES")) * time.Minute,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_URI", "mongodb://127.0.0.1:27017")
	v.SetDefault("DB_NAME", "creators")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PREFETCH_THUMBNAILS", false)
	v.SetDefault("SESSION_IDLE_MINUTES", 30)
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	resp := models.ErrorMessageResponse{Response: models.MessageError{Message: message}}
	if err != nil {
		resp.Response.Error = err.Error()
	}
	b, _ := json.Marshal(resp)
	_, _ = w.Write(b)
}
