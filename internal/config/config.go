package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects which REST endpoint family the client targets.
type Mode string

const (
	// ModeCloud targets a Jira Cloud or modern Server/DC deployment.
	ModeCloud Mode = "cloud"
	// ModeServer6x targets a legacy Jira Server 6.x deployment. Forces
	// /rest/api/2 endpoints and enables identity field remapping.
	ModeServer6x Mode = "server_6x"
)

// AuthType is how credentials are presented to Jira.
type AuthType string

const (
	AuthBasic AuthType = "basic"
	AuthPAT   AuthType = "pat"
)

// AuthMethod selects between header and session auth under server_6x.
type AuthMethod string

const (
	MethodBasic  AuthMethod = "basic"
	MethodCookie AuthMethod = "cookie"
)

// Config holds all configuration for the server
type Config struct {
	// Jira connection
	URL      string   `yaml:"url"`  // Required: base URL of the Jira instance
	Mode     Mode     `yaml:"mode"` // cloud or server_6x
	AuthType AuthType `yaml:"-"`    // resolved from credentials, never configured
	Username string   `yaml:"username"`

	// Credentials (env only, never read from file)
	Password      string `yaml:"-"`
	APIToken      string `yaml:"-"`
	PersonalToken string `yaml:"-"`

	// Auth method for server_6x: basic or cookie
	AuthMethod AuthMethod `yaml:"auth"`

	// TLS
	SSLVerify   bool   `yaml:"ssl_verify"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	CAFile      string `yaml:"ca_file"` // Path to custom CA bundle

	// Tool surface
	ProjectsFilter []string `yaml:"projects_filter"` // Allow-list of project keys
	EnabledTools   []string `yaml:"enabled_tools"`   // Allow-list of exposed tools

	// Extra HTTP headers applied to every Jira request
	CustomHeaders map[string]string `yaml:"custom_headers"`

	// Logging
	Verbose       bool `yaml:"-"` // MCP_VERBOSE
	VeryVerbose   bool `yaml:"-"` // MCP_VERY_VERBOSE
	LoggingStdout bool `yaml:"-"` // MCP_LOGGING_STDOUT
}

var (
	// instance holds the singleton config instance
	instance *Config
)

// Get returns the singleton config instance
func Get() *Config {
	if instance == nil {
		panic("config not initialized")
	}
	return instance
}

// Load creates a Config from environment variables, optionally overlaid by a
// YAML file. The file never carries credentials; those come from the
// environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Mode:       ModeCloud,
		AuthMethod: MethodBasic,
		SSLVerify:  true,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if v := os.Getenv("JIRA_URL"); v != "" {
		cfg.URL = v
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("missing required environment variable: JIRA_URL")
	}
	cfg.URL = strings.TrimSuffix(cfg.URL, "/")

	if v := os.Getenv("JIRA_MODE"); v != "" {
		cfg.Mode = Mode(strings.ToLower(v))
	}
	if cfg.Mode != ModeCloud && cfg.Mode != ModeServer6x {
		warnf("invalid JIRA_MODE value %q, defaulting to cloud", cfg.Mode)
		cfg.Mode = ModeCloud
	}

	if v := os.Getenv("JIRA_AUTH"); v != "" {
		cfg.AuthMethod = AuthMethod(strings.ToLower(v))
	}
	if cfg.AuthMethod != MethodBasic && cfg.AuthMethod != MethodCookie {
		warnf("invalid JIRA_AUTH value %q, defaulting to basic", cfg.AuthMethod)
		cfg.AuthMethod = MethodBasic
	}

	if v := os.Getenv("JIRA_USERNAME"); v != "" {
		cfg.Username = v
	}
	cfg.Password = os.Getenv("JIRA_PASSWORD")
	cfg.APIToken = os.Getenv("JIRA_API_TOKEN")
	cfg.PersonalToken = os.Getenv("JIRA_PERSONAL_TOKEN")

	authType, err := resolveAuthType(cfg)
	if err != nil {
		return nil, err
	}
	cfg.AuthType = authType

	if v, ok := os.LookupEnv("JIRA_SSL_VERIFY"); ok {
		cfg.SSLVerify = parseBool(v)
	}
	if v, ok := os.LookupEnv("JIRA_TLS_INSECURE"); ok {
		cfg.TLSInsecure = parseBool(v)
	}
	if v := os.Getenv("JIRA_CA_FILE"); v != "" {
		cfg.CAFile = v
	}

	if v := os.Getenv("JIRA_PROJECTS_FILTER"); v != "" {
		cfg.ProjectsFilter = splitList(v)
	}
	if v := os.Getenv("ENABLED_TOOLS"); v != "" {
		cfg.EnabledTools = splitList(v)
	}
	if v := os.Getenv("JIRA_CUSTOM_HEADERS"); v != "" {
		cfg.CustomHeaders = parseHeaders(v)
	}

	cfg.Verbose = parseBool(os.Getenv("MCP_VERBOSE"))
	cfg.VeryVerbose = parseBool(os.Getenv("MCP_VERY_VERBOSE"))
	cfg.LoggingStdout = parseBool(os.Getenv("MCP_LOGGING_STDOUT"))

	// Store the instance
	instance = cfg

	return cfg, nil
}

// resolveAuthType determines the auth scheme from the available credentials,
// mirroring how the upstream REST families differ:
//   - server_6x: username plus password (basic or cookie) or API token
//   - cloud: username plus API token
//   - server/DC: personal access token wins, then basic
func resolveAuthType(cfg *Config) (AuthType, error) {
	if cfg.Mode == ModeServer6x {
		if cfg.AuthMethod == MethodCookie {
			if cfg.Username == "" || cfg.Password == "" {
				return "", fmt.Errorf("cookie authentication requires JIRA_USERNAME and JIRA_PASSWORD")
			}
			return AuthBasic, nil
		}
		if cfg.Username != "" && (cfg.Password != "" || cfg.APIToken != "") {
			return AuthBasic, nil
		}
		return "", fmt.Errorf("server_6x authentication requires JIRA_USERNAME and JIRA_PASSWORD (or JIRA_API_TOKEN)")
	}

	if cfg.IsCloud() {
		if cfg.Username != "" && cfg.APIToken != "" {
			return AuthBasic, nil
		}
		return "", fmt.Errorf("cloud authentication requires JIRA_USERNAME and JIRA_API_TOKEN")
	}

	if cfg.PersonalToken != "" {
		return AuthPAT, nil
	}
	if cfg.Username != "" && cfg.APIToken != "" {
		return AuthBasic, nil
	}
	return "", fmt.Errorf("server authentication requires JIRA_PERSONAL_TOKEN or JIRA_USERNAME and JIRA_API_TOKEN")
}

// IsCloud reports whether the configured instance is Jira Cloud. server_6x
// mode is never cloud regardless of the URL.
func (c *Config) IsCloud() bool {
	if c.Mode == ModeServer6x {
		return false
	}
	return strings.Contains(c.URL, ".atlassian.net")
}

// IsServer6x reports whether legacy compatibility behavior is enabled.
func (c *Config) IsServer6x() bool {
	return c.Mode == ModeServer6x
}

// CookieAuth reports whether session-cookie authentication is in effect.
func (c *Config) CookieAuth() bool {
	return c.Mode == ModeServer6x && c.AuthMethod == MethodCookie
}

// BasicPassword returns the secret used for basic auth: the password if
// present (Server 6.x), otherwise the API token.
func (c *Config) BasicPassword() string {
	if c.Password != "" {
		return c.Password
	}
	return c.APIToken
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseHeaders parses "K1=V1,K2=V2" into a header map. Malformed pairs are
// skipped.
func parseHeaders(v string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "config: "+format+"\n", args...)
}
