package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC health server

	Env      string // "dev" | "prod"
	Store    string // "sqlite" | "memory"
	DBPath   string // e.g. "./data/gatepass.db"
	LogLevel string // debug | info | warn | error

	// Location is the site time zone; visit windows are calendar dates in it.
	Location *time.Location

	KnownGates  []string
	CORSOrigins []string

	RecordStatusChecks bool
	StrictPairing      bool
	RequireStartToday  bool

	// Heartbeat retention
	HeartbeatRetentionDays int // 0 = keep forever
	PruneIntervalHours     int // how often the pruner runs (default 6)
}

// FromEnv reads GATEPASS_* variables. Unknown values fall back to defaults;
// only an unloadable time zone is an error.
func FromEnv() (Config, error) {
	env := strings.ToLower(getenvDefault("GATEPASS_ENV", "dev"))
	if env != "dev" && env != "prod" {
		env = "dev"
	}

	st := strings.ToLower(getenvDefault("GATEPASS_STORE", "sqlite"))
	if st != "sqlite" && st != "memory" {
		st = "sqlite"
	}

	tz := getenvDefault("GATEPASS_TIMEZONE", "Asia/Bangkok")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("GATEPASS_TIMEZONE %q: %w", tz, err)
	}

	return Config{
		HTTPAddr: getenvDefault("GATEPASS_HTTP_ADDR", ":8080"),
		GRPCAddr: os.Getenv("GATEPASS_GRPC_ADDR"),

		Env:      env,
		Store:    st,
		DBPath:   getenvDefault("GATEPASS_DB_PATH", "./data/gatepass.db"),
		LogLevel: strings.ToLower(getenvDefault("GATEPASS_LOG_LEVEL", "info")),
		Location: loc,

		KnownGates:  splitCSV(os.Getenv("GATEPASS_KNOWN_GATES")),
		CORSOrigins: splitCSV(os.Getenv("GATEPASS_CORS_ORIGINS")),

		RecordStatusChecks: getenvBool("GATEPASS_RECORD_STATUS_CHECKS"),
		StrictPairing:      getenvBool("GATEPASS_STRICT_PAIRING"),
		RequireStartToday:  getenvBool("GATEPASS_REQUIRE_START_TODAY"),

		HeartbeatRetentionDays: getenvInt("GATEPASS_HEARTBEAT_RETENTION_DAYS", 30),
		PruneIntervalHours:     getenvInt("GATEPASS_PRUNE_INTERVAL_HOURS", 6),
	}, nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return strings.EqualFold(v, "true") || v == "1"
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
