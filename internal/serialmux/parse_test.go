package serialmux

import "testing"

func TestClassifyPayload(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"R,800,780,200,790,810", EventTypeReflectance},
		{"E,1765", EventTypeEcho},
		{"E,-1", EventTypeEcho},
		{"P,1,0", EventTypeProximity},
		{"  P,0,0\r", EventTypeProximity},
		{"# board v1.3 ready", EventTypeInfo},
		{"", EventTypeUnknown},
		{"RX", EventTypeUnknown},
		{"M,10,10", EventTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			if got := ClassifyPayload(tt.payload); got != tt.want {
				t.Errorf("ClassifyPayload(%q) = %q, want %q", tt.payload, got, tt.want)
			}
		})
	}
}
