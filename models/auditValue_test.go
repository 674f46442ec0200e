package models

import (
	"encoding/json"
	"testing"
)

func TestAuditValueScan(t *testing.T) {
	cases := []struct {
		name string
		in   interface{}
		want string
	}{
		{"integer from numeric column", int64(30), "30"},
		{"real from numeric column", float64(7.5), "7.5"},
		{"bool", true, "true"},
		{"bytes", []byte(`"08:00"`), `"08:00"`},
		{"string", `{"a":1}`, `{"a":1}`},
		{"null", nil, ""},
	}
	for _, tc := range cases {
		var v AuditValue
		if err := v.Scan(tc.in); err != nil {
			t.Fatalf("%s: Scan: %v", tc.name, err)
		}
		if string(v) != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, string(v), tc.want)
		}
	}

	var v AuditValue
	if err := v.Scan(struct{}{}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestAuditValueJSON(t *testing.T) {
	entry := AuditEntry{Field: "breakMinutes", OldValue: AuditValue("30")}
	b, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out["old_value"] != float64(30) || out["new_value"] != nil {
		t.Fatalf("unexpected encoding %s", b)
	}

	v, err := AuditValue("45").Value()
	if err != nil || v != "45" {
		t.Fatalf("Value: %v %v", v, err)
	}
	if v, _ := AuditValue(nil).Value(); v != nil {
		t.Fatalf("expected NULL for empty value, got %v", v)
	}
}
