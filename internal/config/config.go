// Copyright (c) 2026 Heerawalla
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GoogleConfig holds credentials for the Google APIs used by the contacts
// sync and the consultation calendar.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	CalendarID   string `yaml:"calendar_id"`
}

// CatalogConfig holds the published CSV endpoints the catalog API republishes.
type CatalogConfig struct {
	ProductsURL     string `yaml:"products_url"`
	InspirationsURL string `yaml:"inspirations_url"`
	SiteConfigURL   string `yaml:"site_config_url"`
}

// Config holds all configuration for the relay service.
type Config struct {
	// Mail routing
	ForwardTo        string
	ForwardRejectsTo string
	ReplyTo          string
	NoReplyAddress   string
	InternalSenders  []string

	// Send switches
	SendAck    bool
	SendReject bool
	SendSubmit bool
	AckMode    string // "immediate" or "queue"

	AckSweepInterval time.Duration
	RateLimitPerHour int

	// Providers
	ResendAPIKey string
	Google       GoogleConfig
	Catalog      CatalogConfig

	// Stores
	RedisURL    string
	DatabaseURL string

	// HTTP
	Port           int
	AllowedOrigins []string
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Atelier struct {
		ForwardTo        string   `yaml:"forward_to"`
		ForwardRejectsTo string   `yaml:"forward_rejects_to"`
		ReplyTo          string   `yaml:"reply_to"`
		NoReplyAddress   string   `yaml:"no_reply_address"`
		InternalSenders  []string `yaml:"internal_senders"`
	} `yaml:"atelier"`
	Send struct {
		Ack     *bool  `yaml:"ack"`
		Reject  *bool  `yaml:"reject"`
		Submit  *bool  `yaml:"submit"`
		AckMode string `yaml:"ack_mode"`
	} `yaml:"send"`
	Resend struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"resend"`
	Google  GoogleConfig  `yaml:"google"`
	Catalog CatalogConfig `yaml:"catalog"`
	Redis   struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		ForwardTo:        firstNonEmpty(raw.Atelier.ForwardTo, envOrDefault("FORWARD_TO", "")),
		ForwardRejectsTo: firstNonEmpty(raw.Atelier.ForwardRejectsTo, envOrDefault("FORWARD_REJECTS_TO", "")),
		ReplyTo:          firstNonEmpty(raw.Atelier.ReplyTo, envOrDefault("REPLY_TO_ADDRESS", "atelier@heerawalla.com")),
		NoReplyAddress:   firstNonEmpty(raw.Atelier.NoReplyAddress, "no-reply@heerawalla.com"),
		SendAck:          boolOrDefault(raw.Send.Ack, envOrDefaultBool("SEND_ACK", true)),
		SendReject:       boolOrDefault(raw.Send.Reject, envOrDefaultBool("SEND_REJECT", true)),
		SendSubmit:       boolOrDefault(raw.Send.Submit, envOrDefaultBool("SEND_SUBMIT", true)),
		AckMode:          firstNonEmpty(raw.Send.AckMode, envOrDefault("ACK_MODE", "immediate")),
		AckSweepInterval: envOrDefaultDuration("ACK_SWEEP_INTERVAL", 5*time.Minute),
		RateLimitPerHour: envOrDefaultInt("MAX_SUBMISSIONS_PER_HOUR", 5),
		ResendAPIKey:     firstNonEmpty(raw.Resend.APIKey, envOrDefault("RESEND_API_KEY", "")),
		Google:           raw.Google,
		Catalog:          raw.Catalog,
		RedisURL:         firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		DatabaseURL:      firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "")),
		Port:             firstNonZero(raw.Server.Port, envOrDefaultInt("PORT", 8080)),
		AllowedOrigins:   raw.Server.AllowedOrigins,
	}

	// The atelier's own outbound address is always an internal sender.
	seen := map[string]bool{}
	for _, addr := range append([]string{cfg.ReplyTo}, raw.Atelier.InternalSenders...) {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		cfg.InternalSenders = append(cfg.InternalSenders, addr)
	}
	for _, addr := range strings.Split(envOrDefault("ATELIER_SENDERS", ""), ",") {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		cfg.InternalSenders = append(cfg.InternalSenders, addr)
	}

	if cfg.ForwardTo == "" {
		return nil, fmt.Errorf("forward_to is required — inbound mail needs a destination mailbox")
	}
	if cfg.AckMode != "immediate" && cfg.AckMode != "queue" {
		return nil, fmt.Errorf("ack_mode must be \"immediate\" or \"queue\", got %q", cfg.AckMode)
	}

	return cfg, nil
}

// IsInternalSender reports whether a lowercased address belongs to atelier staff.
func (c *Config) IsInternalSender(addr string) bool {
	addr = strings.ToLower(strings.TrimSpace(addr))
	for _, s := range c.InternalSenders {
		if s == addr {
			return true
		}
	}
	return false
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func boolOrDefault(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
