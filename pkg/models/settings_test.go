package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestConnectionSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      ConnectionSettings
		wantErr string
	}{
		{"valid", ConnectionSettings{ServerURL: "http://host:9000", APIKey: "k"}, ""},
		{"https with path", ConnectionSettings{ServerURL: "https://octopi.local/octoprint", APIKey: "abc"}, ""},
		{"missing key", ConnectionSettings{ServerURL: "http://host:9000"}, "apiKey is required"},
		{"missing url", ConnectionSettings{APIKey: "k"}, "serverUrl is required"},
		{"relative url", ConnectionSettings{ServerURL: "/octoprint", APIKey: "k"}, "serverUrl must be an absolute URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConnectionSettingsConfigured(t *testing.T) {
	if (ConnectionSettings{ServerURL: "http://x"}).Configured() {
		t.Error("settings without api key should not be configured")
	}
	if !(ConnectionSettings{ServerURL: "http://x", APIKey: "k"}).Configured() {
		t.Error("settings with api key should be configured")
	}
}

func TestNewUpdateEnvelope(t *testing.T) {
	status := &PrinterStatus{
		State: PrinterState{Text: "Operational", Flags: PrinterStateFlags{Operational: true, Ready: true}},
		Temperature: map[string]TemperatureData{
			"tool0": {Actual: floatPtr(210.1), Target: floatPtr(210)},
		},
	}
	job := &JobInfo{}

	b, err := json.Marshal(NewUpdate(status, job))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "update" {
		t.Errorf("type = %v, want update", decoded["type"])
	}
	data, ok := decoded["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("data missing: %s", b)
	}
	jobData, ok := data["job"].(map[string]interface{})
	if !ok {
		t.Fatalf("data.job missing: %s", b)
	}
	if _, ok := jobData["job"]; !ok {
		t.Error("data.job.job missing")
	}
	if _, ok := jobData["progress"]; !ok {
		t.Error("data.job.progress missing")
	}
	progress := jobData["progress"].(map[string]interface{})
	if progress["completion"] != nil {
		t.Errorf("idle completion should be null, got %v", progress["completion"])
	}
}

func floatPtr(v float64) *float64 { return &v }
