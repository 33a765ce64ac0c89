package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete jira-gen configuration
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Jira     JiraConfig     `mapstructure:"jira"`
	Stages   StagesConfig   `mapstructure:"stages"`
	Diagrams DiagramsConfig `mapstructure:"diagrams"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Output   OutputConfig   `mapstructure:"output"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BackendConfig controls the reasoning backend connection
type BackendConfig struct {
	// BaseURL is the completion endpoint base URL
	BaseURL string `mapstructure:"base_url"`
	// APIKey authenticates against the backend. Required: runs fail fast
	// at submission when absent.
	APIKey string `mapstructure:"api_key"`
	// Model is the model identifier to request
	Model string `mapstructure:"model"`
	// MaxTokens caps the response length per completion
	MaxTokens int `mapstructure:"max_tokens"`
	// TimeoutSeconds is the per-request timeout for completion calls
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout returns the backend request timeout as a time.Duration
func (b *BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// JiraConfig controls the optional remote backlog sync.
// When Server, Username, or APIToken is empty, sync short-circuits to a
// no-op and artifacts stay local.
type JiraConfig struct {
	// Server is the Jira instance base URL (e.g. https://example.atlassian.net)
	Server string `mapstructure:"server"`
	// Username is the Jira account email
	Username string `mapstructure:"username"`
	// APIToken is the Jira API token
	APIToken string `mapstructure:"api_token"`
	// ProjectKey is the default project for created issues
	ProjectKey string `mapstructure:"project_key"`
	// EpicIssueType is the issue type name used for epics
	EpicIssueType string `mapstructure:"epic_issue_type"`
	// StoryIssueType is the issue type name used for stories
	StoryIssueType string `mapstructure:"story_issue_type"`
	// TimeoutSeconds is the per-request timeout for Jira calls
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Configured reports whether enough Jira settings are present to attempt
// remote sync.
func (j *JiraConfig) Configured() bool {
	return j.Server != "" && j.Username != "" && j.APIToken != ""
}

// Timeout returns the Jira request timeout as a time.Duration
func (j *JiraConfig) Timeout() time.Duration {
	return time.Duration(j.TimeoutSeconds) * time.Second
}

// StagesConfig carries the role definitions for the three pipeline stages
type StagesConfig struct {
	BusinessAnalyst StageConfig `mapstructure:"business_analyst"`
	Architect       StageConfig `mapstructure:"architect"`
	ProjectManager  StageConfig `mapstructure:"project_manager"`
}

// StageConfig describes one role-specialized reasoning stage
type StageConfig struct {
	// Role is the persona the stage adopts (e.g. "Senior Business Analyst")
	Role string `mapstructure:"role"`
	// Goal is the stage's objective statement
	Goal string `mapstructure:"goal"`
	// Backstory is supporting persona context included in the prompt
	Backstory string `mapstructure:"backstory"`
	// TimeoutSeconds is the maximum execution time for the stage
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout returns the stage execution timeout as a time.Duration
func (s *StageConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// DiagramsConfig controls which diagram kinds are rendered
type DiagramsConfig struct {
	// Kinds is the list of diagram kinds to render.
	// Valid values: "architecture", "sequence", "data_flow", "er", "state".
	// Empty means all supported kinds.
	Kinds []string `mapstructure:"kinds"`
}

// RetryConfig bounds the backoff loops around network operations
type RetryConfig struct {
	// MaxAttempts is the total attempt ceiling per operation (default: 3)
	MaxAttempts int `mapstructure:"max_attempts"`
	// BackoffBaseMs is the initial backoff delay in milliseconds
	BackoffBaseMs int `mapstructure:"backoff_base_ms"`
	// BackoffCapMs is the maximum backoff delay in milliseconds
	BackoffCapMs int `mapstructure:"backoff_cap_ms"`
}

// BackoffBase returns the initial backoff delay as a time.Duration
func (r *RetryConfig) BackoffBase() time.Duration {
	return time.Duration(r.BackoffBaseMs) * time.Millisecond
}

// BackoffCap returns the maximum backoff delay as a time.Duration
func (r *RetryConfig) BackoffCap() time.Duration {
	return time.Duration(r.BackoffCapMs) * time.Millisecond
}

// OutputConfig controls where generated artifacts are written
type OutputConfig struct {
	// Dir is the directory for generated artifact files (default: "outputs")
	Dir string `mapstructure:"dir"`
}

// ServerConfig controls the HTTP submission surface
type ServerConfig struct {
	// Addr is the listen address (default: ":8000")
	Addr string `mapstructure:"addr"`
	// MaxConcurrentRuns bounds in-flight pipeline runs (default: 4)
	MaxConcurrentRuns int `mapstructure:"max_concurrent_runs"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the log directory; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "https://api.anthropic.com",
			Model:          "claude-sonnet-4-5",
			MaxTokens:      8192,
			TimeoutSeconds: 120,
		},
		Jira: JiraConfig{
			ProjectKey:     "BA",
			EpicIssueType:  "Epic",
			StoryIssueType: "Story",
			TimeoutSeconds: 30,
		},
		Stages: StagesConfig{
			BusinessAnalyst: StageConfig{
				Role:           "Senior Business Analyst",
				Goal:           "Analyze business requirements and create comprehensive documentation",
				Backstory:      "You are an experienced business analyst with expertise in requirements gathering, stakeholder management, and business process optimization.",
				TimeoutSeconds: 300,
			},
			Architect: StageConfig{
				Role:           "Senior System Architect",
				Goal:           "Design comprehensive system architecture and create technical documentation with syntactically correct Mermaid diagrams",
				Backstory:      "You are an expert system architect with 15+ years of experience in designing scalable, secure enterprise systems. You always validate Mermaid syntax before output.",
				TimeoutSeconds: 600,
			},
			ProjectManager: StageConfig{
				Role:           "Senior Project Manager",
				Goal:           "Create structured project artifacts including epics and user stories",
				Backstory:      "You are a seasoned project manager with extensive experience in Agile methodologies, story writing, and project planning.",
				TimeoutSeconds: 300,
			},
		},
		Diagrams: DiagramsConfig{
			Kinds: []string{}, // Empty means all supported kinds
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			BackoffBaseMs: 500,
			BackoffCapMs:  4000,
		},
		Output: OutputConfig{
			Dir: "outputs",
		},
		Server: ServerConfig{
			Addr:              ":8000",
			MaxConcurrentRuns: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Backend defaults
	viper.SetDefault("backend.base_url", defaults.Backend.BaseURL)
	viper.SetDefault("backend.model", defaults.Backend.Model)
	viper.SetDefault("backend.max_tokens", defaults.Backend.MaxTokens)
	viper.SetDefault("backend.timeout_seconds", defaults.Backend.TimeoutSeconds)

	// Jira defaults
	viper.SetDefault("jira.project_key", defaults.Jira.ProjectKey)
	viper.SetDefault("jira.epic_issue_type", defaults.Jira.EpicIssueType)
	viper.SetDefault("jira.story_issue_type", defaults.Jira.StoryIssueType)
	viper.SetDefault("jira.timeout_seconds", defaults.Jira.TimeoutSeconds)

	// Stage defaults
	viper.SetDefault("stages.business_analyst.role", defaults.Stages.BusinessAnalyst.Role)
	viper.SetDefault("stages.business_analyst.goal", defaults.Stages.BusinessAnalyst.Goal)
	viper.SetDefault("stages.business_analyst.backstory", defaults.Stages.BusinessAnalyst.Backstory)
	viper.SetDefault("stages.business_analyst.timeout_seconds", defaults.Stages.BusinessAnalyst.TimeoutSeconds)
	viper.SetDefault("stages.architect.role", defaults.Stages.Architect.Role)
	viper.SetDefault("stages.architect.goal", defaults.Stages.Architect.Goal)
	viper.SetDefault("stages.architect.backstory", defaults.Stages.Architect.Backstory)
	viper.SetDefault("stages.architect.timeout_seconds", defaults.Stages.Architect.TimeoutSeconds)
	viper.SetDefault("stages.project_manager.role", defaults.Stages.ProjectManager.Role)
	viper.SetDefault("stages.project_manager.goal", defaults.Stages.ProjectManager.Goal)
	viper.SetDefault("stages.project_manager.backstory", defaults.Stages.ProjectManager.Backstory)
	viper.SetDefault("stages.project_manager.timeout_seconds", defaults.Stages.ProjectManager.TimeoutSeconds)

	// Diagram defaults
	viper.SetDefault("diagrams.kinds", defaults.Diagrams.Kinds)

	// Retry defaults
	viper.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)
	viper.SetDefault("retry.backoff_base_ms", defaults.Retry.BackoffBaseMs)
	viper.SetDefault("retry.backoff_cap_ms", defaults.Retry.BackoffCapMs)

	// Output defaults
	viper.SetDefault("output.dir", defaults.Output.Dir)

	// Server defaults
	viper.SetDefault("server.addr", defaults.Server.Addr)
	viper.SetDefault("server.max_concurrent_runs", defaults.Server.MaxConcurrentRuns)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "jira-gen")
	}
	// Fall back to ~/.config/jira-gen
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jira-gen"
	}
	return filepath.Join(home, ".config", "jira-gen")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
