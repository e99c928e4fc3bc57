package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultTripletexBaseURL = "https://tripletex.no/v2"
	DefaultChargebeeSite    = "lexolve"
)

// Tripletex holds the ledger service settings.
type Tripletex struct {
	BaseURL       string
	ConsumerToken string
	EmployeeToken string
	AppName       string
	Timeout       time.Duration

	// Retry policy for posting detail fetches
	RetryInitial time.Duration
	MaxRetries   uint
}

// Chargebee holds the billing service settings.
type Chargebee struct {
	Site    string
	BaseURL string // overrides the site derived URL when set
	APIKey  string
	Timeout time.Duration
}

// URL returns the API root for the configured site.
func (c Chargebee) URL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.chargebee.com/api/v2", c.Site)
}

type Kafka struct {
	Brokers []string
	Topic   string
}

// Config is the process-wide configuration, read once at startup.
type Config struct {
	Tripletex       Tripletex
	Chargebee       Chargebee
	SlackWebhookURL string
	Kafka           Kafka
	DatabaseURL     string
	HTTPAddr        string
	LogLevel        slog.Level
	Concurrency     int

	// HTTPTimeout bounds every outbound call, including notifications.
	HTTPTimeout time.Duration
}

// Load reads the given .env files (missing ones are skipped) and then the
// process environment through v.
func Load(v *viper.Viper, envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Tripletex: Tripletex{
			BaseURL:       strings.TrimRight(v.GetString("TRIPLETEX_BASE_URL"), "/"),
			ConsumerToken: v.GetString("CONSUMER_TOKEN"),
			EmployeeToken: v.GetString("EMPLOYEE_TOKEN"),
			AppName:       v.GetString("APPNAME"),
			Timeout:       v.GetDuration("HTTP_TIMEOUT"),
			RetryInitial:  v.GetDuration("POSTING_RETRY_INITIAL"),
			MaxRetries:    v.GetUint("POSTING_MAX_RETRIES"),
		},
		Chargebee: Chargebee{
			Site:    v.GetString("CHARGEBEE_SITE"),
			BaseURL: v.GetString("CHARGEBEE_BASE_URL"),
			APIKey:  v.GetString("CHARGEBEE_API_KEY"),
			Timeout: v.GetDuration("HTTP_TIMEOUT"),
		},
		SlackWebhookURL: v.GetString("SLACK_WEBHOOK_URL"),
		Kafka: Kafka{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		DatabaseURL: v.GetString("DATABASE_URL"),
		HTTPAddr:    httpAddr(v),
		Concurrency: v.GetInt("RECONCILE_CONCURRENCY"),
		HTTPTimeout: v.GetDuration("HTTP_TIMEOUT"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("TRIPLETEX_BASE_URL", DefaultTripletexBaseURL)
	v.SetDefault("CHARGEBEE_SITE", DefaultChargebeeSite)
	v.SetDefault("HTTP_TIMEOUT", 30*time.Second)
	v.SetDefault("POSTING_RETRY_INITIAL", 250*time.Millisecond)
	v.SetDefault("POSTING_MAX_RETRIES", 3)
	v.SetDefault("RECONCILE_CONCURRENCY", 2)
	v.SetDefault("KAFKA_TOPIC", "invoice_reconciled")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
}

// PORT is what function runtimes hand us, so it wins over HTTP_ADDR.
func httpAddr(v *viper.Viper) string {
	if port := v.GetString("PORT"); port != "" {
		return ":" + port
	}
	return v.GetString("HTTP_ADDR")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every required setting that is missing.
func (c Config) Validate() error {
	var missing []string
	required := []struct {
		key, value string
	}{
		{"CONSUMER_TOKEN", c.Tripletex.ConsumerToken},
		{"EMPLOYEE_TOKEN", c.Tripletex.EmployeeToken},
		{"APPNAME", c.Tripletex.AppName},
		{"CHARGEBEE_API_KEY", c.Chargebee.APIKey},
		{"SLACK_WEBHOOK_URL", c.SlackWebhookURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Tripletex.MaxRetries < 1 {
		return errors.New("POSTING_MAX_RETRIES must be at least 1")
	}
	if c.Concurrency < 1 {
		return errors.New("RECONCILE_CONCURRENCY must be at least 1")
	}
	return nil
}

// Presence lists each required key with whether it is set, without values.
func (c Config) Presence() []KeyPresence {
	return []KeyPresence{
		{"CONSUMER_TOKEN", c.Tripletex.ConsumerToken != ""},
		{"EMPLOYEE_TOKEN", c.Tripletex.EmployeeToken != ""},
		{"APPNAME", c.Tripletex.AppName != ""},
		{"CHARGEBEE_API_KEY", c.Chargebee.APIKey != ""},
		{"SLACK_WEBHOOK_URL", c.SlackWebhookURL != ""},
		{"KAFKA_BROKERS", len(c.Kafka.Brokers) > 0},
		{"DATABASE_URL", c.DatabaseURL != ""},
	}
}

type KeyPresence struct {
	Key string
	Set bool
}
