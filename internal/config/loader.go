package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the IT admin service.
type Config struct {
	HTTPPort   int
	SQLiteDSN  string
	SessionTTL time.Duration

	// ReminderInterval is the cadence of the billing reminder delivery pass.
	ReminderInterval time.Duration
	// AdminEmail is the mandatory primary recipient of billing reminders.
	AdminEmail string

	// Microsoft Graph mail credentials. All four Graph values must be set
	// together; outgoing mail is disabled when they are absent.
	SenderEmail       string
	GraphTenantID     string
	GraphClientID     string
	GraphClientSecret string
}

// MailConfigured reports whether the Graph credential set is complete.
func (c Config) MailConfigured() bool {
	return c.SenderEmail != "" && c.GraphTenantID != "" && c.GraphClientID != "" && c.GraphClientSecret != ""
}

// Load parses configuration values from the current process environment.
//
// The loader applies defaults for optional fields and accumulates every
// missing or invalid entry before reporting, so a misconfigured deployment
// surfaces all problems at once.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:         8080,
		SQLiteDSN:        "file:itadmin.db?_foreign_keys=on",
		SessionTTL:       24 * time.Hour,
		ReminderInterval: 5 * time.Minute,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("ITADMIN_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "ITADMIN_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("ITADMIN_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("ITADMIN_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "ITADMIN_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if intervalValue := strings.TrimSpace(os.Getenv("ITADMIN_REMINDER_INTERVAL")); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "ITADMIN_REMINDER_INTERVAL")
		} else {
			cfg.ReminderInterval = interval
		}
	}

	if email := strings.TrimSpace(os.Getenv("ITADMIN_ADMIN_EMAIL")); email == "" {
		missing = append(missing, "ITADMIN_ADMIN_EMAIL")
	} else {
		cfg.AdminEmail = email
	}

	cfg.SenderEmail = strings.TrimSpace(os.Getenv("ITADMIN_SENDER_EMAIL"))
	cfg.GraphTenantID = strings.TrimSpace(os.Getenv("ITADMIN_GRAPH_TENANT_ID"))
	cfg.GraphClientID = strings.TrimSpace(os.Getenv("ITADMIN_GRAPH_CLIENT_ID"))
	cfg.GraphClientSecret = strings.TrimSpace(os.Getenv("ITADMIN_GRAPH_CLIENT_SECRET"))

	graphSet := 0
	for _, v := range []string{cfg.SenderEmail, cfg.GraphTenantID, cfg.GraphClientID, cfg.GraphClientSecret} {
		if v != "" {
			graphSet++
		}
	}
	if graphSet > 0 && graphSet < 4 {
		invalid = append(invalid, "ITADMIN_SENDER_EMAIL/ITADMIN_GRAPH_TENANT_ID/ITADMIN_GRAPH_CLIENT_ID/ITADMIN_GRAPH_CLIENT_SECRET (partial)")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
