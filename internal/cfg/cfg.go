package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	DatabaseURL           string

	DetectionEnabled bool
	RedactThreshold  int
	BlockThreshold   int
	AllowedServices  string
	ForceBlockTypes  string
	KeywordThreshold int

	EscalationEnabled   bool
	EscalationThreshold int
	CooldownSeconds     int
	PagerBaseURL        string
	PagerAPIKey         string
	PagerAssistantID    string
	PagerPhoneNumberID  string
	PagerToNumber       string
	PagerDepartment     string

	ClaudeAPIKey string
	ClaudeModel  string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token protecting operator endpoints")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")

	fs.BoolVar(&c.DetectionEnabled, "detection-enabled", true, "run PHI matchers on scanned payloads")
	fs.IntVar(&c.RedactThreshold, "redact-threshold", 40, "risk score at or above which payloads are redacted (0..100)")
	fs.IntVar(&c.BlockThreshold, "block-threshold", 70, "risk score at or above which payloads are blocked (0..100)")
	fs.StringVar(&c.AllowedServices, "allowed-services", "", "comma-separated services exempt from the unauthorized-service boost")
	fs.StringVar(&c.ForceBlockTypes, "force-block-types", "", "comma-separated entity types that always block (e.g. US_SSN)")
	fs.IntVar(&c.KeywordThreshold, "keyword-threshold", 3, "distinct medical keywords required for the keyword boost (>=1)")

	fs.BoolVar(&c.EscalationEnabled, "escalation-enabled", false, "place voice calls for high-risk events")
	fs.IntVar(&c.EscalationThreshold, "escalation-threshold", 70, "risk score at or above which calls are placed (0..100)")
	fs.IntVar(&c.CooldownSeconds, "cooldown-seconds", 300, "minimum seconds between calls for the same source (1..86400)")
	fs.StringVar(&c.PagerBaseURL, "pager-base-url", "https://api.vapi.ai", "base URL of the voice call provider")
	fs.StringVar(&c.PagerAPIKey, "pager-api-key", "", "API key for the voice call provider")
	fs.StringVar(&c.PagerAssistantID, "pager-assistant-id", "", "voice assistant ID used for escalation calls")
	fs.StringVar(&c.PagerPhoneNumberID, "pager-phone-number-id", "", "provider phone number ID calls originate from")
	fs.StringVar(&c.PagerToNumber, "pager-to-number", "", "E.164 number the escalation call is placed to")
	fs.StringVar(&c.PagerDepartment, "pager-department", "Security", "department announced on escalation calls")

	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key enabling the statistical PHI matcher (empty = patterns only)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model for the statistical matcher")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Operator endpoints must not run unauthenticated
	if c.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}

	if c.RedactThreshold < 0 || c.RedactThreshold > 100 {
		errs = append(errs, fmt.Errorf("invalid REDACT_THRESHOLD %d (must be 0..100)", c.RedactThreshold))
	}
	if c.BlockThreshold < 0 || c.BlockThreshold > 100 {
		errs = append(errs, fmt.Errorf("invalid BLOCK_THRESHOLD %d (must be 0..100)", c.BlockThreshold))
	}
	if c.BlockThreshold < c.RedactThreshold {
		errs = append(errs, fmt.Errorf("BLOCK_THRESHOLD %d must not be below REDACT_THRESHOLD %d", c.BlockThreshold, c.RedactThreshold))
	}
	if c.KeywordThreshold < 1 {
		errs = append(errs, fmt.Errorf("invalid KEYWORD_THRESHOLD %d (must be >=1)", c.KeywordThreshold))
	}

	if c.EscalationThreshold < 0 || c.EscalationThreshold > 100 {
		errs = append(errs, fmt.Errorf("invalid ESCALATION_THRESHOLD %d (must be 0..100)", c.EscalationThreshold))
	}
	if c.CooldownSeconds <= 0 || c.CooldownSeconds > 86400 {
		errs = append(errs, fmt.Errorf("invalid COOLDOWN_SECONDS %d (must be 1..86400)", c.CooldownSeconds))
	}

	// Escalation needs a fully configured provider
	if c.EscalationEnabled {
		if c.PagerAPIKey == "" {
			errs = append(errs, errors.New("PAGER_API_KEY is required when escalation is enabled"))
		}
		if c.PagerAssistantID == "" {
			errs = append(errs, errors.New("PAGER_ASSISTANT_ID is required when escalation is enabled"))
		}
		if c.PagerPhoneNumberID == "" {
			errs = append(errs, errors.New("PAGER_PHONE_NUMBER_ID is required when escalation is enabled"))
		}
		if c.PagerToNumber == "" {
			errs = append(errs, errors.New("PAGER_TO_NUMBER is required when escalation is enabled"))
		}
	}

	// The statistical matcher needs a model once a key is supplied
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// AllowList returns the allowed services as a slice.
func (c *Config) AllowList() []string {
	return splitCSV(c.AllowedServices)
}

// ForceBlockList returns the force-block entity types as a slice.
func (c *Config) ForceBlockList() []string {
	return splitCSV(c.ForceBlockTypes)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
