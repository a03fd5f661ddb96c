package config

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDefaultPolicy(t *testing.T) {
	cfg := Default("demo")
	if cfg.Program.ID != "demo" {
		t.Fatalf("program id %q", cfg.Program.ID)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	p := cfg.Eligibility
	if p.MinGPA != 2.0 || p.MinWeeks != 7 || p.MinTotalHours != 140 || p.MinSemesters != 2 || p.MinSemestersIfTransfer != 1 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte(`
program:
  id: fall-2026
eligibility:
  min_gpa: 2.5
  min_weeks: 8
  min_total_hours: 160
  min_semesters: 2
  min_semesters_if_transfer: 1
webhooks:
  - url: https://example.test/hook
    events: [coop.graded]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Eligibility.MinGPA != 2.5 || cfg.Eligibility.MinWeeks != 8 {
		t.Fatalf("unexpected policy: %+v", cfg.Eligibility)
	}
	if len(cfg.Webhooks) != 1 || cfg.Webhooks[0].URL != "https://example.test/hook" {
		t.Fatalf("unexpected webhooks: %+v", cfg.Webhooks)
	}
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	cases := []string{
		"program:\n  id: \"\"\n",
		"program:\n  id: x\neligibility:\n  min_gpa: 5.0\n  min_weeks: 7\n  min_total_hours: 140\n",
		"program:\n  id: x\neligibility:\n  min_gpa: 2.0\n  min_weeks: 0\n  min_total_hours: 140\n",
		"program:\n  id: x\neligibility:\n  min_gpa: 2.0\n  min_weeks: 7\n  min_total_hours: 140\nwebhooks:\n  - url: \"\"\n",
	}
	for i, raw := range cases {
		if _, err := FromYAML([]byte(raw)); err == nil {
			t.Fatalf("case %d: expected validation failure", i)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	cfg := Default("demo")
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"min_total_hours":140`) {
		t.Fatalf("unexpected payload %s", data)
	}
	var back Config
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Eligibility != cfg.Eligibility {
		t.Fatalf("policy changed across round trip: %+v vs %+v", back.Eligibility, cfg.Eligibility)
	}
}
