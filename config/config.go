package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting read from the environment.
type Config struct {
	Port     string `envconfig:"PORT" default:"3000"`
	GinMode  string `envconfig:"GIN_MODE" default:"debug"`
	MongoURI string `envconfig:"MONGO_URI" required:"true"`
	MongoDB  string `envconfig:"MONGO_DATABASE" default:"curalink"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"1h"`

	AllowedOrigins     []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:9002"`
	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`

	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `envconfig:"VAPID_SUBJECT" default:"mailto:admin@curalink.app"`

	// none, cloudinary or s3
	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"none"`
	CloudinaryURL  string `envconfig:"CLOUDINARY_URL"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3Region       string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`
	S3PublicURL    string `envconfig:"S3_PUBLIC_URL"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL" default:"http://localhost:3000/api/users/google/callback"`

	OrphanSweepSchedule string `envconfig:"ORPHAN_SWEEP_SCHEDULE" default:"@daily"`
}

// Release reports whether gin should run in release mode.
func (c *Config) Release() bool {
	return c.GinMode == "release"
}

// GoogleEnabled reports whether both OAuth client credentials are present.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
