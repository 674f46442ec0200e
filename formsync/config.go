package formsync

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tenant is one company whose form backend is polled.
type Tenant struct {
	CompanyId       string `yaml:"company_id"`
	BaseURL         string `yaml:"base_url"`
	ServiceToken    string `yaml:"service_token"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	LookbackDays    int    `yaml:"lookback_days"`
}

type Config struct {
	IntervalSeconds int      `yaml:"interval_seconds"`
	Tenants         []Tenant `yaml:"tenants"`
}

const (
	defaultIntervalSeconds = 300
	defaultLookbackDays    = 7
	defaultRatePerMin      = 60
)

// LoadConfig reads the YAML tenant file; ${VAR} references are expanded from
// the environment so tokens stay out of the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form sync config: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse form sync config: %w", err)
	}
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = defaultIntervalSeconds
	}
	seen := map[string]bool{}
	for i := range cfg.Tenants {
		t := &cfg.Tenants[i]
		t.CompanyId = strings.TrimSpace(t.CompanyId)
		t.BaseURL = strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
		if t.CompanyId == "" || t.BaseURL == "" {
			return nil, errors.New("every tenant needs company_id and base_url")
		}
		if seen[t.CompanyId] {
			return nil, fmt.Errorf("duplicate tenant %s", t.CompanyId)
		}
		seen[t.CompanyId] = true
		if t.RateLimitPerMin <= 0 {
			t.RateLimitPerMin = defaultRatePerMin
		}
		if t.LookbackDays <= 0 {
			t.LookbackDays = defaultLookbackDays
		}
	}
	return &cfg, nil
}

func (c *Config) Tenant(companyId string) (Tenant, bool) {
	for _, t := range c.Tenants {
		if t.CompanyId == companyId {
			return t, true
		}
	}
	return Tenant{}, false
}
