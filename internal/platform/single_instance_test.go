package platform

import "testing"

func TestNormalizeLockComponent(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback string
		want     string
	}{
		{name: "preserves alnum and separators", raw: "kettlebridge-v1.2_3", fallback: "app", want: "kettlebridge-v1.2_3"},
		{name: "replaces unsupported runes", raw: "AA:BB:CC:DD:EE:FF", fallback: "device", want: "AA_BB_CC_DD_EE_FF"},
		{name: "trims separator edges", raw: ".._kettle-._", fallback: "app", want: "kettle"},
		{name: "empty uses fallback", raw: "   ", fallback: "fallback", want: "fallback"},
		{name: "all unsupported uses fallback", raw: "[]{}", fallback: "fallback", want: "fallback"},
	}

	for _, tc := range tests {
		got := normalizeInstanceLockComponent(tc.raw, tc.fallback)
		if got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
