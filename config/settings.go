package config

import (
	"os"
	"strings"
	"time"
)

// PinPolicy configures the PIN lockout state machine.
//
// Set via env:
// - PIN_MAX_FAILED_ATTEMPTS (default 3)
// - PIN_LOCK_MINUTES (default 30)
type PinPolicy struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
}

func DefaultPinPolicy() PinPolicy {
	return PinPolicy{MaxFailedAttempts: 3, LockDuration: 30 * time.Minute}
}

func PinPolicyFromEnv() PinPolicy {
	p := DefaultPinPolicy()
	if n := intFromEnv("PIN_MAX_FAILED_ATTEMPTS", p.MaxFailedAttempts); n > 0 {
		p.MaxFailedAttempts = n
	}
	if n := intFromEnv("PIN_LOCK_MINUTES", 30); n > 0 {
		p.LockDuration = time.Duration(n) * time.Minute
	}
	return p
}

const (
	StorageProviderLocal = "local"
	StorageProviderGCS   = "gcs"
)

// ExportSettings selects where released workday files go.
type ExportSettings struct {
	Provider string
	BaseDir  string
	Bucket   string
}

func ExportSettingsFromEnv() ExportSettings {
	provider := strings.ToLower(stringFromEnv("STORAGE_PROVIDER", StorageProviderLocal))
	if provider != StorageProviderGCS {
		provider = StorageProviderLocal
	}
	return ExportSettings{
		Provider: provider,
		BaseDir:  stringFromEnv("EXPORT_BASE_DIR", "./exports"),
		Bucket:   strings.TrimSpace(os.Getenv("GCS_BUCKET")),
	}
}

// OutboxSettings tunes the workday event dispatcher.
type OutboxSettings struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

func OutboxSettingsFromEnv() OutboxSettings {
	return OutboxSettings{
		PollInterval: time.Duration(intFromEnv("OUTBOX_POLL_SECONDS", 5)) * time.Second,
		BatchSize:    intFromEnv("OUTBOX_BATCH_SIZE", 50),
		MaxAttempts:  intFromEnv("OUTBOX_MAX_ATTEMPTS", 10),
	}
}

// EnvBool parses the usual truthy/falsy spellings.
func EnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
