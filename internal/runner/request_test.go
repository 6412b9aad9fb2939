package runner

import (
	"encoding/json"
	"testing"
)

func TestValidateRunRequest(t *testing.T) {
	t.Parallel()

	request, err := ValidateRunRequest(json.RawMessage(`{"mode":"analyze","reportId":7}`))
	if err != nil {
		t.Fatalf("ValidateRunRequest failed: %v", err)
	}
	if request.Mode != "analyze" {
		t.Fatalf("mode = %q", request.Mode)
	}
	if request.ReportID == nil || *request.ReportID != 7 {
		t.Fatalf("reportId = %v", request.ReportID)
	}
	if request.KeepPairs {
		t.Fatal("keepPairs should default to false")
	}
}

func TestValidateRunRequestFastMode(t *testing.T) {
	t.Parallel()

	request, err := ValidateRunRequest(json.RawMessage(`{"mode":"analyze_fast","keepPairs":true}`))
	if err != nil {
		t.Fatalf("ValidateRunRequest failed: %v", err)
	}
	if request.Mode != "analyze_fast" {
		t.Fatalf("mode = %q", request.Mode)
	}
	if !request.KeepPairs {
		t.Fatal("keepPairs = false, want true")
	}
	if request.ReportID != nil {
		t.Fatalf("reportId = %v, want nil", request.ReportID)
	}
}

func TestValidateRunRequestRejectsInvalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
	}{
		{"empty", ``},
		{"missing mode", `{}`},
		{"unknown mode", `{"mode":"turbo"}`},
		{"zero report id", `{"mode":"analyze","reportId":0}`},
		{"unknown field", `{"mode":"analyze","batchSize":10}`},
		{"trailing content", `{"mode":"analyze"} extra`},
		{"wrong type", `{"mode":"analyze","reportId":"7"}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ValidateRunRequest(json.RawMessage(tc.payload)); err == nil {
				t.Fatalf("expected error for payload %q", tc.payload)
			}
		})
	}
}
