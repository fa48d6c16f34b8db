// Package config loads ukur's runtime configuration from the environment,
// following the plain os.Getenv-plus-defaults idiom the teacher's agent
// config loader uses (no flags/viper library anywhere in the retrieval pack).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is every configuration key enumerated in spec.md §6.
type Config struct {
	PollingInterval time.Duration
	TiamatInterval  time.Duration
	TiamatEnabled   bool
	TiamatURL       string

	ETEnabled bool
	SXEnabled bool

	UseSubscription bool

	PollingETURLTemplate string // printf template, takes requestorId
	PollingSXURLTemplate string

	SubscriptionURL string
	OwnBaseURL      string

	StoreMessagesToFile bool

	Operator string

	RedisAddr string
	HTTPAddr  string
}

// Load reads configuration from the environment, applying the defaults the
// original product shipped with. It never fails: per spec.md §7 no
// configuration value is fatal, including the ConfigMisuse case where both
// ET and SX are disabled under subscription mode — callers are expected to
// log a warning and simply register no subscription triggers in that case
// (see IsSubscriptionMisconfigured).
func Load() (Config, error) {
	c := Config{
		PollingInterval:      durationEnv("UKUR_POLLING_INTERVAL_MS", 30_000*time.Millisecond),
		TiamatInterval:       durationEnv("UKUR_TIAMAT_INTERVAL_MS", 15*time.Minute),
		TiamatEnabled:        boolEnv("UKUR_TIAMAT_ENABLED", true),
		TiamatURL:            os.Getenv("UKUR_TIAMAT_URL"),
		ETEnabled:            boolEnv("UKUR_ET_ENABLED", true),
		SXEnabled:            boolEnv("UKUR_SX_ENABLED", true),
		UseSubscription:      boolEnv("UKUR_USE_SUBSCRIPTION", false),
		PollingETURLTemplate: os.Getenv("UKUR_POLLING_ET_URL"),
		PollingSXURLTemplate: os.Getenv("UKUR_POLLING_SX_URL"),
		SubscriptionURL:      os.Getenv("UKUR_SUBSCRIPTION_URL"),
		OwnBaseURL:           os.Getenv("UKUR_OWN_BASE_URL"),
		StoreMessagesToFile:  boolEnv("UKUR_STORE_MESSAGES_TO_FILE", false),
		Operator:             envOr("UKUR_OPERATOR", "NSB"),
		RedisAddr:            envOr("UKUR_REDIS_ADDR", "localhost:6379"),
		HTTPAddr:             envOr("UKUR_HTTP_ADDR", ":8080"),
	}

	return c, nil
}

// IsSubscriptionMisconfigured reports the ConfigMisuse condition of spec.md
// §7: both feeds disabled while running in subscription mode. The caller
// logs a warning and skips registering any subscription trigger.
func (c Config) IsSubscriptionMisconfigured() bool {
	return c.UseSubscription && !c.ETEnabled && !c.SXEnabled
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
