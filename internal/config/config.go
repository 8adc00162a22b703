package config // package config loads application configuration from environment variables

// Config holds the core runtime configuration.  Concern-specific settings
// (rate limiting, caching, payments, broker, mail, tracing) have their own
// loaders so that binaries only read what they use.
type Config struct {
	Env         string // application environment (e.g. "dev", "prod")
	Port        string // HTTP port to listen on
	DBUser      string // database username
	DBPass      string // database password (optional)
	DBHost      string // database host address
	DBPort      string // database port number
	DBName      string // database name
	AutoMigrate bool   // apply embedded migrations on startup
	JWTSecret   string // HS256 secret shared with the identity provider
	JWTIssuer   string // expected "iss" claim; empty disables the check
	Log         LogConfig
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json or console
	Output   string // stdout or file
	FilePath string // used when Output is "file"
}

// Load reads the core configuration.  Required variables are enforced by
// must() and missing values cause the program to exit with a fatal log
// message.
func Load() Config {
	loadDotEnv()
	return Config{
		Env:         must("APP_ENV"),
		Port:        must("APP_PORT"),
		DBUser:      must("DB_USER"),
		DBPass:      envStr("DB_PASS", ""),
		DBHost:      must("DB_HOST"),
		DBPort:      must("DB_PORT"),
		DBName:      must("DB_NAME"),
		AutoMigrate: envBool("DB_AUTO_MIGRATE", false),
		JWTSecret:   must("JWT_SECRET"),
		JWTIssuer:   envStr("JWT_ISSUER", ""),
		Log:         LoadLogConfig(),
	}
}

// LoadLogConfig reads LOG_* variables.  It is separate from Load so that
// workers without an HTTP surface can configure logging alone.
func LoadLogConfig() LogConfig {
	loadDotEnv()
	return LogConfig{
		Level:    envStr("LOG_LEVEL", "info"),
		Format:   envStr("LOG_FORMAT", ""),
		Output:   envStr("LOG_OUTPUT", "stdout"),
		FilePath: envStr("LOG_FILE", "logs/app.log"),
	}
}

// LoadAuthConfig reads only the token settings, for tools that mint or
// verify tokens without a database.
func LoadAuthConfig() (secret, issuer string) {
	loadDotEnv()
	return must("JWT_SECRET"), envStr("JWT_ISSUER", "")
}
