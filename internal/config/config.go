package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string   `yaml:"port"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"`
	BasePath       string   `yaml:"base_path"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	ProjectID      string   `yaml:"project_id"`

	N8N      N8NConfig      `yaml:"n8n"`
	Groq     GroqConfig     `yaml:"groq"`
	TTS      TTSConfig      `yaml:"tts"`
	OpenCode OpenCodeConfig `yaml:"opencode"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Duplex   DuplexConfig   `yaml:"duplex"`

	ShutdownGrace    time.Duration `yaml:"-"`
	ShutdownGraceRaw string        `yaml:"shutdown_grace"`
}

type N8NConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"api_key"`
	// WorkflowTransport is "api" (REST) or "mcp" (n8n-mcp over stdio).
	WorkflowTransport string   `yaml:"workflow_transport"`
	MCPCommand        string   `yaml:"mcp_command"`
	MCPArgs           []string `yaml:"mcp_args"`
	ActivateWorkflows bool     `yaml:"activate_workflows"`
}

type GroqConfig struct {
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type TTSConfig struct {
	Provider     string  `yaml:"provider"`
	KokoroURL    string  `yaml:"kokoro_url"`
	DefaultVoice string  `yaml:"default_voice"`
	DefaultSpeed float64 `yaml:"default_speed"`
}

type OpenCodeConfig struct {
	Binary        string `yaml:"binary"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// TimeoutsConfig holds the per-intent dispatch budgets.
type TimeoutsConfig struct {
	Chat        time.Duration `yaml:"-"`
	Debug       time.Duration `yaml:"-"`
	Docs        time.Duration `yaml:"-"`
	Orchestrate time.Duration `yaml:"-"`
	Workflow    time.Duration `yaml:"-"`

	ChatRaw        string `yaml:"chat"`
	DebugRaw       string `yaml:"debug"`
	DocsRaw        string `yaml:"docs"`
	OrchestrateRaw string `yaml:"orchestrate"`
	WorkflowRaw    string `yaml:"workflow"`
}

type DuplexConfig struct {
	// RouteMode is "chat" (every message goes to the chat capability) or
	// "classify" (same routing as POST /chat).
	RouteMode string `yaml:"route_mode"`
	// Delivery is "message" or "stream".
	Delivery  string `yaml:"delivery"`
	QueueSize int    `yaml:"queue_size"`
}

const (
	RouteModeChat     = "chat"
	RouteModeClassify = "classify"

	DeliveryMessage = "message"
	DeliveryStream  = "stream"

	TransportAPI = "api"
	TransportMCP = "mcp"

	ProviderKokoro = "kokoro"
	ProviderEdge   = "edge"
)

// Defaults returns a config that runs against a local n8n and Kokoro.
func Defaults() *Config {
	return &Config{
		Port:           "5000",
		LogLevel:       "info",
		LogFormat:      "json",
		BasePath:       "/api",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3003"},
		N8N: N8NConfig{
			WebhookURL:        "http://localhost:5678/webhook/jarvis-chat",
			APIURL:            "http://localhost:5678/api/v1",
			WorkflowTransport: TransportAPI,
			MCPCommand:        "npx",
			MCPArgs:           []string{"-y", "n8n-mcp"},
		},
		Groq: GroqConfig{
			BaseURL:  "https://api.groq.com/openai/v1",
			Model:    "whisper-large-v3-turbo",
			Language: "pt",
		},
		TTS: TTSConfig{
			Provider:     ProviderEdge,
			KokoroURL:    "http://localhost:8880",
			DefaultVoice: "bf_emma",
			DefaultSpeed: 1.0,
		},
		OpenCode: OpenCodeConfig{
			Binary:        "opencode",
			MaxConcurrent: 4,
		},
		Timeouts: TimeoutsConfig{
			ChatRaw:        "60s",
			DebugRaw:       "30s",
			DocsRaw:        "30s",
			OrchestrateRaw: "120s",
			WorkflowRaw:    "30s",
		},
		Duplex: DuplexConfig{
			RouteMode: RouteModeChat,
			Delivery:  DeliveryMessage,
			QueueSize: 16,
		},
		ShutdownGraceRaw: "10s",
	}
}

// New builds the config from defaults, the optional YAML file named by
// CONFIG_FILE, then environment variables. Later sources win.
func New() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or "" when unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string, sep string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v, sep)
		}
	}

	str("PORT", &c.Port)
	str("LOGLEVEL", &c.LogLevel)
	str("LOGFORMAT", &c.LogFormat)
	str("BASE_PATH", &c.BasePath)
	str("PROJECTID", &c.ProjectID)
	list("FRONTEND_URL", &c.AllowedOrigins, ",")

	str("N8N_WEBHOOK_URL", &c.N8N.WebhookURL)
	str("N8N_API_URL", &c.N8N.APIURL)
	str("N8N_API_KEY", &c.N8N.APIKey)
	str("WORKFLOW_TRANSPORT", &c.N8N.WorkflowTransport)
	str("N8N_MCP_COMMAND", &c.N8N.MCPCommand)
	list("N8N_MCP_ARGS", &c.N8N.MCPArgs, " ")

	str("GROQ_API_KEY", &c.Groq.APIKey)
	str("GROQ_BASE_URL", &c.Groq.BaseURL)
	str("GROQ_MODEL", &c.Groq.Model)
	str("GROQ_LANGUAGE", &c.Groq.Language)

	str("TTS_PROVIDER", &c.TTS.Provider)
	str("KOKORO_URL", &c.TTS.KokoroURL)
	str("TTS_DEFAULT_VOICE", &c.TTS.DefaultVoice)

	str("OPENCODE_BIN", &c.OpenCode.Binary)

	str("TIMEOUT_CHAT", &c.Timeouts.ChatRaw)
	str("TIMEOUT_DEBUG", &c.Timeouts.DebugRaw)
	str("TIMEOUT_DOCS", &c.Timeouts.DocsRaw)
	str("TIMEOUT_ORCHESTRATE", &c.Timeouts.OrchestrateRaw)
	str("TIMEOUT_WORKFLOW", &c.Timeouts.WorkflowRaw)

	str("DUPLEX_ROUTE_MODE", &c.Duplex.RouteMode)
	str("DUPLEX_DELIVERY", &c.Duplex.Delivery)
	str("SHUTDOWN_GRACE", &c.ShutdownGraceRaw)

	var err error
	if v, ok := lookup("WORKFLOW_ACTIVATE"); ok && v != "" {
		if c.N8N.ActivateWorkflows, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("WORKFLOW_ACTIVATE: %w", err)
		}
	}
	if v, ok := lookup("TTS_DEFAULT_SPEED"); ok && v != "" {
		if c.TTS.DefaultSpeed, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("TTS_DEFAULT_SPEED: %w", err)
		}
	}
	if v, ok := lookup("OPENCODE_MAX_CONCURRENT"); ok && v != "" {
		if c.OpenCode.MaxConcurrent, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("OPENCODE_MAX_CONCURRENT: %w", err)
		}
	}
	if v, ok := lookup("DUPLEX_QUEUE_SIZE"); ok && v != "" {
		if c.Duplex.QueueSize, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("DUPLEX_QUEUE_SIZE: %w", err)
		}
	}
	return nil
}

func splitList(v, sep string) []string {
	var out []string
	for _, part := range strings.Split(v, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDurations(c *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"timeouts.chat", c.Timeouts.ChatRaw, &c.Timeouts.Chat},
		{"timeouts.debug", c.Timeouts.DebugRaw, &c.Timeouts.Debug},
		{"timeouts.docs", c.Timeouts.DocsRaw, &c.Timeouts.Docs},
		{"timeouts.orchestrate", c.Timeouts.OrchestrateRaw, &c.Timeouts.Orchestrate},
		{"timeouts.workflow", c.Timeouts.WorkflowRaw, &c.Timeouts.Workflow},
		{"shutdown_grace", c.ShutdownGraceRaw, &c.ShutdownGrace},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate reports the first problem found.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("base_path must start with /: %q", c.BasePath)
	}
	if err := checkURL("n8n.webhook_url", c.N8N.WebhookURL); err != nil {
		return err
	}

	switch c.N8N.WorkflowTransport {
	case TransportAPI:
		if err := checkURL("n8n.api_url", c.N8N.APIURL); err != nil {
			return err
		}
	case TransportMCP:
		if c.N8N.MCPCommand == "" {
			return errors.New("n8n.mcp_command is required when workflow_transport is mcp")
		}
	default:
		return fmt.Errorf("n8n.workflow_transport must be %q or %q, got %q", TransportAPI, TransportMCP, c.N8N.WorkflowTransport)
	}

	switch c.TTS.Provider {
	case ProviderKokoro:
		if err := checkURL("tts.kokoro_url", c.TTS.KokoroURL); err != nil {
			return err
		}
	case ProviderEdge:
	default:
		return fmt.Errorf("tts.provider must be %q or %q, got %q", ProviderKokoro, ProviderEdge, c.TTS.Provider)
	}
	if c.TTS.DefaultSpeed <= 0 {
		return errors.New("tts.default_speed must be positive")
	}

	if c.OpenCode.Binary == "" {
		return errors.New("opencode.binary is required")
	}
	if c.OpenCode.MaxConcurrent < 1 {
		return errors.New("opencode.max_concurrent must be at least 1")
	}

	for name, d := range map[string]time.Duration{
		"timeouts.chat":        c.Timeouts.Chat,
		"timeouts.debug":       c.Timeouts.Debug,
		"timeouts.docs":        c.Timeouts.Docs,
		"timeouts.orchestrate": c.Timeouts.Orchestrate,
		"timeouts.workflow":    c.Timeouts.Workflow,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	switch c.Duplex.RouteMode {
	case RouteModeChat, RouteModeClassify:
	default:
		return fmt.Errorf("duplex.route_mode must be %q or %q, got %q", RouteModeChat, RouteModeClassify, c.Duplex.RouteMode)
	}
	switch c.Duplex.Delivery {
	case DeliveryMessage, DeliveryStream:
	default:
		return fmt.Errorf("duplex.delivery must be %q or %q, got %q", DeliveryMessage, DeliveryStream, c.Duplex.Delivery)
	}
	if c.Duplex.QueueSize < 1 {
		return errors.New("duplex.queue_size must be at least 1")
	}
	return nil
}

func checkURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is not an absolute URL: %q", name, raw)
	}
	return nil
}
