// Package config loads application settings from the environment.
package config

import (
	"github.com/kelseyhightower/envconfig"
)

// App holds everything the server needs to start. Receipts default to
// the in-memory object store so local runs need no S3 credentials.
type App struct {
	// Network
	HTTPAddr    string   `envconfig:"HTTP_ADDR" default:":8080"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`

	// Storage
	DBPath string `envconfig:"DB_PATH" default:"smartlabs.db"`

	// Receipts (proof-of-payment object store)
	ReceiptsBackend string `envconfig:"RECEIPTS_BACKEND" default:"memory"` // "memory" or "s3"
	S3Endpoint      string `envconfig:"S3_ENDPOINT"`
	S3Region        string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket        string `envconfig:"S3_BUCKET" default:"receipts"`
	S3AccessKey     string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey     string `envconfig:"S3_SECRET_KEY"`
	S3UseSSL        bool   `envconfig:"S3_USE_SSL" default:"true"`

	// Observability
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
