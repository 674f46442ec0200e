package formsync

import (
	"strings"
	"testing"
)

func TestParseConfig_ExpandsEnvAndDefaults(t *testing.T) {
	t.Setenv("FORM_TOKEN_A", "secret-a")
	cfg, err := ParseConfig([]byte(`
tenants:
  - company_id: company-a
    base_url: https://forms.example.com/
    service_token: ${FORM_TOKEN_A}
  - company_id: company-b
    base_url: https://other.example.com
    service_token: plain
    rate_limit_per_min: 30
    lookback_days: 2
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.IntervalSeconds != defaultIntervalSeconds {
		t.Fatalf("interval = %d", cfg.IntervalSeconds)
	}
	a, ok := cfg.Tenant("company-a")
	if !ok {
		t.Fatalf("company-a missing")
	}
	if a.ServiceToken != "secret-a" || a.BaseURL != "https://forms.example.com" {
		t.Fatalf("unexpected tenant %+v", a)
	}
	if a.RateLimitPerMin != defaultRatePerMin || a.LookbackDays != defaultLookbackDays {
		t.Fatalf("defaults not applied: %+v", a)
	}
	b, _ := cfg.Tenant("company-b")
	if b.RateLimitPerMin != 30 || b.LookbackDays != 2 {
		t.Fatalf("unexpected tenant %+v", b)
	}
	if _, ok := cfg.Tenant("company-c"); ok {
		t.Fatalf("unexpected tenant company-c")
	}
}

func TestParseConfig_RejectsBadTenants(t *testing.T) {
	cases := map[string]string{
		"missing url": "tenants:\n  - company_id: a\n",
		"duplicate":   "tenants:\n  - company_id: a\n    base_url: http://x\n  - company_id: a\n    base_url: http://y\n",
	}
	for name, doc := range cases {
		if _, err := ParseConfig([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := ParseConfig([]byte("tenants: [")); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
