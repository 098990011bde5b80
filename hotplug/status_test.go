package hotplug

import "testing"

func TestParseStatus(t *testing.T) {
	tests := map[string]bool{
		"connected":    true,
		" Connected\n": true,
		"0":            true,
		"disconnected": false,
		"1":            false,
	}

	for payload, expected := range tests {
		connected, err := ParseStatus(payload)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", payload, err)
		}
		if connected != expected {
			t.Fatalf("%q: expected %v", payload, expected)
		}
	}

	if _, err := ParseStatus("unknown"); err == nil {
		t.Fatal("expected error for unknown payload")
	}
}
