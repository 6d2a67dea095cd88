package units

import (
	"math"
	"testing"
)

func TestEchoToCentimetres(t *testing.T) {
	tests := []struct {
		name   string
		micros float64
		want   float64
	}{
		{"no echo time", 0, 0},
		{"follow distance", 1764.7, 30},
		{"max distance", 4705.9, 80},
		{"min distance", 882.4, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EchoToCentimetres(tt.micros); math.Abs(got-tt.want) > 0.01 {
				t.Errorf("EchoToCentimetres(%v) = %v, want %v", tt.micros, got, tt.want)
			}
		})
	}
}

func TestConvertDistance(t *testing.T) {
	tests := []struct {
		name  string
		cm    float64
		units string
		want  float64
	}{
		{"cm unchanged", 30, CM, 30},
		{"to mm", 30, MM, 300},
		{"to inches", 25.4, Inch, 10},
		{"unknown defaults to cm", 30, "furlong", 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertDistance(tt.cm, tt.units); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConvertDistance(%v, %s) = %v, want %v", tt.cm, tt.units, got, tt.want)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false, want true", u)
		}
	}
	for _, u := range []string{"", "CM", "mph", "m"} {
		if IsValid(u) {
			t.Errorf("IsValid(%q) = true, want false", u)
		}
	}
	if GetValidUnitsString() != "cm, mm, in" {
		t.Errorf("unexpected units string %q", GetValidUnitsString())
	}
}
