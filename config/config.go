package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
	defaultBasePath           = "/api/v1/auth"
	defaultBcryptCost         = 10
)

// Merge-by-email policies for OAuth logins.
const (
	MergeByEmailAlways   = "always"
	MergeByEmailVerified = "verified"
	MergeByEmailNever    = "never"
)

// Mail drivers.
const (
	MailDriverLog  = "log"
	MailDriverSMTP = "smtp"
)

const envDevelopment = "development"

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int      `json:"port" yaml:"port"`
		BasePath           string   `json:"basePath" yaml:"basePath"`
		MaxRequestBodySize string   `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		AllowOrigins       []string `json:"allowOrigins" yaml:"allowOrigins"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Redis *RedisConfig `json:"redis" yaml:"redis"`

	SecretKey struct {
		Access  string `json:"access" yaml:"access"`
		Refresh string `json:"refresh" yaml:"refresh"`
	} `json:"secretKey" yaml:"secretKey"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	Cookie *CookieConfig `json:"cookie" yaml:"cookie"`

	OAuth *OAuthConfig `json:"oauth" yaml:"oauth"`

	Mail *MailConfig `json:"mail" yaml:"mail"`

	Metrics *MetricsConfig `json:"metrics" yaml:"metrics"`

	Migration *MigrationConfig `json:"migration" yaml:"migration"`

	// TestRoutes configuration for testing endpoints
	TestRoutes *TestRoutesConfig `json:"testRoutes" yaml:"testRoutes"`
}

// RedisConfig backs the revocation and OAuth state stores. When disabled the in-memory stores are used.
type RedisConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	URL       string `json:"url" yaml:"url"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost          int           `json:"bcryptCost" yaml:"bcryptCost"`
	Issuer              string        `json:"issuer" yaml:"issuer"`
	AccessTokenTTL      time.Duration `json:"accessTokenTTL" yaml:"accessTokenTTL"`
	RefreshTokenTTL     time.Duration `json:"refreshTokenTTL" yaml:"refreshTokenTTL"`
	VerificationCodeTTL time.Duration `json:"verificationCodeTTL" yaml:"verificationCodeTTL"`
	PasswordResetTTL    time.Duration `json:"passwordResetTTL" yaml:"passwordResetTTL"`
	OAuthStateTTL       time.Duration `json:"oauthStateTTL" yaml:"oauthStateTTL"`
	MergeByEmail        string        `json:"mergeByEmail" yaml:"mergeByEmail"`
	RefreshRevocation   bool          `json:"refreshRevocation" yaml:"refreshRevocation"`
}

// CookieConfig names the cookies set by the service.
type CookieConfig struct {
	RefreshName string `json:"refreshName" yaml:"refreshName"`
	StateName   string `json:"stateName" yaml:"stateName"`
	Domain      string `json:"domain" yaml:"domain"`
}

// OAuthConfig holds provider credentials. A provider without a client id is disabled.
type OAuthConfig struct {
	CallbackBaseURL string              `json:"callbackBaseURL" yaml:"callbackBaseURL"`
	Google          OAuthProviderConfig `json:"google" yaml:"google"`
	Facebook        OAuthProviderConfig `json:"facebook" yaml:"facebook"`
	GitHub          OAuthProviderConfig `json:"github" yaml:"github"`
}

type OAuthProviderConfig struct {
	ClientID     string `json:"clientId" yaml:"clientId"`
	ClientSecret string `json:"clientSecret" yaml:"clientSecret"`
}

// Enabled reports whether both credentials are present.
func (c OAuthProviderConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// MailConfig defines outbound mail delivery
type MailConfig struct {
	Driver           string        `json:"driver" yaml:"driver"`
	From             string        `json:"from" yaml:"from"`
	SendTimeout      time.Duration `json:"sendTimeout" yaml:"sendTimeout"`
	ResetPasswordURL string        `json:"resetPasswordURL" yaml:"resetPasswordURL"`
	SMTP             struct {
		Host     string `json:"host" yaml:"host"`
		Port     int    `json:"port" yaml:"port"`
		Username string `json:"username" yaml:"username"`
		Password string `json:"password" yaml:"password"`
	} `json:"smtp" yaml:"smtp"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

type MigrationConfig struct {
	AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// TestRoutesConfig defines configuration for testing endpoints
type TestRoutesConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// IsDevelopment reports whether the service runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env.Env, envDevelopment)
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads the configuration and applies defaults without validating it.
// Tools that only need the database, such as the migration CLI, start from here.
func Load() (*Config, error) {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if cfg.Postgres != nil {
		// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.HTTP.MaxRequestBodySize) == "" {
		c.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if c.HTTP.BasePath == "" {
		c.HTTP.BasePath = defaultBasePath
	}
	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = defaultBcryptCost
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.VerificationCodeTTL == 0 {
		c.Auth.VerificationCodeTTL = 30 * time.Minute
	}
	if c.Auth.PasswordResetTTL == 0 {
		c.Auth.PasswordResetTTL = 30 * time.Minute
	}
	if c.Auth.OAuthStateTTL == 0 {
		c.Auth.OAuthStateTTL = 10 * time.Minute
	}
	if c.Auth.MergeByEmail == "" {
		c.Auth.MergeByEmail = MergeByEmailVerified
	}
	if c.Cookie == nil {
		c.Cookie = &CookieConfig{}
	}
	if c.Cookie.RefreshName == "" {
		c.Cookie.RefreshName = "refreshToken"
	}
	if c.Cookie.StateName == "" {
		c.Cookie.StateName = "oauthState"
	}
	if c.OAuth == nil {
		c.OAuth = &OAuthConfig{}
	}
	if c.Mail == nil {
		c.Mail = &MailConfig{}
	}
	if c.Mail.Driver == "" {
		c.Mail.Driver = MailDriverLog
	}
	if c.Mail.SendTimeout == 0 {
		c.Mail.SendTimeout = 10 * time.Second
	}
	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Migration == nil {
		c.Migration = &MigrationConfig{}
	}
	if c.TestRoutes == nil {
		c.TestRoutes = &TestRoutesConfig{}
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.SecretKey.Access == "" || c.SecretKey.Refresh == "" {
		return errors.New("secretKey.access and secretKey.refresh must be provided")
	}

	for name, ttl := range map[string]time.Duration{
		"auth.accessTokenTTL":      c.Auth.AccessTokenTTL,
		"auth.refreshTokenTTL":     c.Auth.RefreshTokenTTL,
		"auth.verificationCodeTTL": c.Auth.VerificationCodeTTL,
		"auth.passwordResetTTL":    c.Auth.PasswordResetTTL,
		"auth.oauthStateTTL":       c.Auth.OAuthStateTTL,
	} {
		if ttl <= 0 {
			return errors.Errorf("%s must be positive", name)
		}
	}

	switch c.Auth.MergeByEmail {
	case MergeByEmailAlways, MergeByEmailVerified, MergeByEmailNever:
	default:
		return errors.Errorf("auth.mergeByEmail %q is not one of always, verified, never", c.Auth.MergeByEmail)
	}

	switch c.Mail.Driver {
	case MailDriverLog:
	case MailDriverSMTP:
		if c.Mail.SMTP.Host == "" || c.Mail.SMTP.Port == 0 {
			return errors.New("mail.smtp.host and mail.smtp.port are required for the smtp driver")
		}
	default:
		return errors.Errorf("mail.driver %q is not one of log, smtp", c.Mail.Driver)
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return errors.New("redis.url is required when redis is enabled")
	}

	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
