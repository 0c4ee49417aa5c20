package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		region string
		want   string
	}{
		{"whatsapp style", "50688887777", "CR", "+50688887777"},
		{"already e164", "+50688887777", "", "+50688887777"},
		{"national with region", "8888 7777", "CR", "+50688887777"},
		{"unparseable kept", "  not-a-number ", "CR", "not-a-number"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeE164(tc.input, tc.region); got != tc.want {
				t.Fatalf("NormalizeE164(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("50688887777", "CR"); got != "+506 8888 7777" {
		t.Fatalf("DisplayName = %q", got)
	}
	if got := DisplayName("", "CR"); got != "" {
		t.Fatalf("DisplayName(empty) = %q", got)
	}
}
