package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	Telnyx  TelnyxConfig
	DB      DBConfig
	Redis   RedisConfig
	Metrics MetricsConfig
}

type AppConfig struct {
	Port  int
	Debug bool
}

type TelnyxConfig struct {
	// APIKey is the Call Control credential. Telnyx keys are prefixed "KEY".
	APIKey  string
	APIBase string

	SalesURI   string
	SupportURI string
	PortingURI string
}

type DBConfig struct {
	// Driver selects the event-store backend: sqlite (default) or postgres.
	Driver string

	// SQLitePath is used when Driver == "sqlite".
	SQLitePath string

	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	// Addr is optional; when set, routed/ended call state is kept in Redis
	// and survives process restarts.
	Addr string
}

type MetricsConfig struct {
	// JWTSecret is optional; when set, /metrics/* requires a bearer token.
	JWTSecret string
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultPort       = 3000
	defaultAPIBase    = "https://api.telnyx.com/v2"
	defaultSQLitePath = "./analytics.sqlite"
)

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	{
		n, err := intEnv("APP_PORT", defaultPort)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.App.Port = n
	}
	c.App.Debug = boolEnv("APP_DEBUG")

	c.Telnyx.APIKey = strings.TrimSpace(os.Getenv("TELNYX_API_KEY"))
	c.Telnyx.APIBase = envOr("TELNYX_API_BASE", defaultAPIBase)
	c.Telnyx.SalesURI = envOr("SALES_SIP_URI", "sip:agent1@sip.telnyx.com")
	c.Telnyx.SupportURI = envOr("SUPPORT_SIP_URI", "sip:agent2@sip.telnyx.com")
	c.Telnyx.PortingURI = envOr("PORTING_SIP_URI", "sip:agent3@sip.telnyx.com")

	c.DB.Driver = envOr("DB_DRIVER", DriverSQLite)
	c.DB.SQLitePath = envOr("ANALYTICS_DB", defaultSQLitePath)
	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if v := strings.TrimSpace(os.Getenv("DB_PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("DB_PORT must be an integer, got %q", v))
		}
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	c.Metrics.JWTSecret = os.Getenv("METRICS_JWT_SECRET")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Telnyx.APIKey == "" {
		errs = append(errs, errors.New("TELNYX_API_KEY is required"))
	} else if !strings.HasPrefix(c.Telnyx.APIKey, "KEY") {
		errs = append(errs, errors.New("TELNYX_API_KEY must start with KEY"))
	}

	switch c.DB.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.DB.SQLitePath) == "" {
			errs = append(errs, errors.New("ANALYTICS_DB is required when DB_DRIVER=sqlite"))
		}
	case DriverPostgres:
		if c.DB.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required when DB_DRIVER=postgres"))
		}
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_DRIVER=postgres"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_DRIVER=postgres"))
		}
		if c.DB.SSLMode == "" {
			c.DB.SSLMode = "disable"
		}
		if !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DB.Driver))
	}

	return joinErrors(errs)
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// DepartmentURIs maps department names to their transfer destinations.
func (c Config) DepartmentURIs() map[string]string {
	return map[string]string{
		"sales":   c.Telnyx.SalesURI,
		"support": c.Telnyx.SupportURI,
		"porting": c.Telnyx.PortingURI,
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func boolEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
