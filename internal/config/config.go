package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or a .env file loaded at startup).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	Twilio   TwilioConfig
	OpenAI   OpenAIConfig
	WakeUp   WakeUpConfig
	Doorbell DoorbellConfig
}

type AppConfig struct {
	Env  string
	Port int

	// BaseURL is the externally reachable URL the carrier calls back into,
	// e.g. "https://coach.example.com:8443". No trailing slash.
	BaseURL string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string

	// FromNumber is the carrier-owned origin number (E.164).
	FromNumber string
}

type OpenAIConfig struct {
	APIKey string
}

type WakeUpConfig struct {
	// Time is the daily wake-up target as "HH:MM" in Timezone.
	Time     string
	Timezone string

	// ToNumber is the destination to wake up (E.164).
	ToNumber string

	// RealtimeProbability is the default chance a placed call uses the
	// realtime-streaming conversation instead of turn-based webhooks.
	RealtimeProbability float64
}

type DoorbellConfig struct {
	// Timeout is how long an activation stays armed before it self-expires.
	Timeout time.Duration

	// WebhookSecret, when set, is required in the X-Webhook-Secret header of
	// presence webhook posts. Empty disables the check (sensor integrations
	// that cannot set headers).
	WebhookSecret string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_URL")), "/")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.FromNumber = strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER"))

	c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")

	c.WakeUp.Time = strings.TrimSpace(os.Getenv("WAKE_UP_TIME"))
	if c.WakeUp.Time == "" {
		c.WakeUp.Time = "07:00"
	}
	c.WakeUp.Timezone = strings.TrimSpace(os.Getenv("TIMEZONE"))
	if c.WakeUp.Timezone == "" {
		c.WakeUp.Timezone = "UTC"
	}
	c.WakeUp.ToNumber = strings.TrimSpace(os.Getenv("PHONE_NUMBER"))
	c.WakeUp.RealtimeProbability = 0.5
	if v := strings.TrimSpace(os.Getenv("REALTIME_PROBABILITY")); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("REALTIME_PROBABILITY must be a float, got %q", v))
		} else {
			c.WakeUp.RealtimeProbability = p
		}
	}

	{
		d, err := parseDuration("DOORBELL_TIMEOUT")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Doorbell.Timeout = d
	}
	c.Doorbell.WebhookSecret = os.Getenv("DOORBELL_WEBHOOK_SECRET")

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

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.BaseURL == "" {
		errs = append(errs, errors.New("BASE_URL is required"))
	} else if !strings.HasPrefix(c.App.BaseURL, "http://") && !strings.HasPrefix(c.App.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("BASE_URL must start with http:// or https://, got %q", c.App.BaseURL))
	}

	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.FromNumber == "" {
		errs = append(errs, errors.New("TWILIO_PHONE_NUMBER is required"))
	}

	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}

	if _, _, err := ParseWakeTime(c.WakeUp.Time); err != nil {
		errs = append(errs, err)
	}
	if _, err := time.LoadLocation(c.WakeUp.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE is not a valid IANA zone: %q", c.WakeUp.Timezone))
	}
	if c.WakeUp.ToNumber == "" {
		errs = append(errs, errors.New("PHONE_NUMBER is required"))
	}
	if c.WakeUp.RealtimeProbability < 0 || c.WakeUp.RealtimeProbability > 1 {
		errs = append(errs, fmt.Errorf("REALTIME_PROBABILITY must be within [0,1], got %v", c.WakeUp.RealtimeProbability))
	}

	if c.Doorbell.Timeout <= 0 {
		// Default: enough time to walk from the bedroom to the front door.
		c.Doorbell.Timeout = 5 * time.Minute
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// MediaStreamURL is the websocket URL the carrier dials for realtime calls.
func (c Config) MediaStreamURL() string {
	u := c.App.BaseURL
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/media-stream"
}

// ParseWakeTime splits an "HH:MM" string into hour and minute.
func ParseWakeTime(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("WAKE_UP_TIME must be HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("WAKE_UP_TIME hour must be 00-23, got %q", parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("WAKE_UP_TIME minute must be 00-59, got %q", parts[1])
	}
	return hour, minute, nil
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// parseDuration reads an optional duration env var: unset yields zero (the
// caller's default applies), a set-but-unparsable value is a config error.
func parseDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like \"5m\", got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
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
