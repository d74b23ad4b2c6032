package logfields

import (
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Release", KeyRelease, "assets", Release("assets")},
		{"Version", KeyVersion, "1.3-dev", Version("1.3-dev")},
		{"Package", KeyPackage, "miku", Package("miku")},
		{"Job", KeyJob, "legna", Job("legna")},
		{"Template", KeyTemplate, "angel", Template("angel")},
		{"Fragment", KeyFragment, "0000_legna.angel.monitrc", Fragment("0000_legna.angel.monitrc")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Mode", KeyMode, "install", Mode("install")},
		{"RunID", KeyRunID, "rid", RunID("rid")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric & float helpers.
func TestNumericHelpers(t *testing.T) {
	if v := ExitStatus(3); v.Key != KeyExitStatus || v.Value.Int64() != 3 {
		t.Fatalf("ExitStatus mismatch: %v", v)
	}
	if v := Count(4); v.Key != KeyCount {
		t.Fatalf("Count key mismatch: %s", v.Key)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
	if v := Since(time.Now().Add(-time.Second)); v.Value.Float64() < 1000 {
		t.Fatalf("Since should report at least 1000ms, got %v", v.Value.Float64())
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
