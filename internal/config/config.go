package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	// JWTSecret signs access tokens. Minimum 32 characters.
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`

	// TokenLifetimeMinutes is the access token TTL in minutes.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`

	// BCryptCost controls the work factor for password hashing.
	// Zero selects the bcrypt default.
	BCryptCost int `mapstructure:"bcrypt_cost" validate:"gte=0,lte=31"`
}

// RateLimitConfig contains request rate limiting settings.
// Rate limiting is optional; when disabled the middleware is a no-op.
type RateLimitConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	RedisURL          string `mapstructure:"redis_url"           validate:"required_if=Enabled true"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" validate:"gte=0"`
	Burst             int    `mapstructure:"burst"               validate:"gte=0"`
}
