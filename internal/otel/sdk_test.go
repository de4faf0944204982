package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"launchpad/internal/errdefs"
)

func TestParseResourceAttributes(t *testing.T) {
	got, err := ParseResourceAttributes(" deployment.environment=staging, team = infra ,, region=")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]string{"deployment.environment": "staging", "team": "infra", "region": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("attributes (-want +got):\n%s", diff)
	}

	for _, raw := range []string{"team", "=infra", "a=b,broken"} {
		if _, err := ParseResourceAttributes(raw); !errors.Is(err, errdefs.ErrConfig) {
			t.Fatalf("%q: expected config error, got %v", raw, err)
		}
	}
}

func TestCollectorEndpoint(t *testing.T) {
	cases := []struct {
		raw      string
		endpoint string
		insecure bool
		fails    bool
	}{
		{raw: "", endpoint: "127.0.0.1:4318"},
		{raw: "collector:4318/", endpoint: "collector:4318"},
		{raw: "http://collector:4318", endpoint: "collector:4318", insecure: true},
		{raw: "https://otel.example.com/", endpoint: "otel.example.com"},
		{raw: "grpc://collector:4317", fails: true},
		{raw: "http://", fails: true},
	}
	for _, tc := range cases {
		endpoint, insecure, err := collectorEndpoint(tc.raw)
		if tc.fails {
			if !errors.Is(err, errdefs.ErrConfig) {
				t.Fatalf("%q: expected config error, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil || endpoint != tc.endpoint || insecure != tc.insecure {
			t.Fatalf("%q: got (%q, %v, %v)", tc.raw, endpoint, insecure, err)
		}
	}
}

func TestSetupSDKDisabledIsNoop(t *testing.T) {
	shutdown, err := SetupSDK(context.Background(), SDKOptions{ResourceAttributes: "broken"})
	if err != nil {
		t.Fatalf("disabled telemetry must not validate settings: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupSDKRejectsBadSettings(t *testing.T) {
	_, err := SetupSDK(context.Background(), SDKOptions{Enabled: true, ResourceAttributes: "=x"})
	if !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	_, err = SetupSDK(context.Background(), SDKOptions{Enabled: true, Endpoint: "ftp://collector"})
	if !errors.Is(err, errdefs.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}
