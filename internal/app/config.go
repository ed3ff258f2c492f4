package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const (
	defaultClaimTTL = 30 * time.Second

	lineChannelParam       = "/line/channel"
	twilioCredentialsParam = "/twilio/credentials"
)

// Config is the process configuration. Secrets are not part of it; they are
// read from SSM under ParamPrefix.
type Config struct {
	ParamPrefix    string
	FlexFlowSID    string
	ChatServiceSID string
	AckText        string
	ClaimTable     string
	ClaimTTL       time.Duration
	PublicBaseURL  string
	LogLevel       slog.Level
}

// LoadConfig reads configuration through getenv. Only presence of the required
// values is checked.
func LoadConfig(getenv func(string) string) (Config, error) {
	if getenv == nil {
		return Config{}, errors.New("app: getenv must not be nil")
	}
	cfg := Config{
		ParamPrefix:    strings.TrimRight(strings.TrimSpace(getenv("PARAM_PREFIX")), "/"),
		FlexFlowSID:    strings.TrimSpace(getenv("TWILIO_FLEX_FLOW_SID")),
		ChatServiceSID: strings.TrimSpace(getenv("TWILIO_FLEX_CHAT_SERVICE_SID")),
		AckText:        getenv("ACK_RESPONSE_TEXT"),
		ClaimTable:     strings.TrimSpace(getenv("CLAIM_TABLE")),
		ClaimTTL:       defaultClaimTTL,
		PublicBaseURL:  strings.TrimRight(strings.TrimSpace(getenv("PUBLIC_BASE_URL")), "/"),
		LogLevel:       slog.LevelInfo,
	}
	if cfg.ParamPrefix == "" {
		return Config{}, errors.New("app: PARAM_PREFIX is required")
	}
	if cfg.ChatServiceSID == "" {
		return Config{}, errors.New("app: TWILIO_FLEX_CHAT_SERVICE_SID is required")
	}
	if v := strings.TrimSpace(getenv("CLAIM_TTL_SECONDS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("app: CLAIM_TTL_SECONDS must be a positive integer, got %q", v)
		}
		cfg.ClaimTTL = time.Duration(n) * time.Second
	}
	if v := strings.TrimSpace(getenv("LOG_LEVEL")); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("app: LOG_LEVEL: %w", err)
		}
	}
	return cfg, nil
}

func (c Config) LineChannelParam() string {
	return c.ParamPrefix + lineChannelParam
}

func (c Config) TwilioCredentialsParam() string {
	return c.ParamPrefix + twilioCredentialsParam
}
