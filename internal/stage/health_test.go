package stage

import "testing"

func TestHealthString(t *testing.T) {
	if got := Healthy("uploader").String(); got != "uploader: ready" {
		t.Fatalf("Healthy string = %q", got)
	}
	unhealthy := Unhealthy("trainer", "cloud role not configured")
	if unhealthy.Ready {
		t.Fatal("expected not ready")
	}
	if got := unhealthy.String(); got != "trainer: cloud role not configured" {
		t.Fatalf("Unhealthy string = %q", got)
	}
}
