package api

import (
	"testing"
)

func TestFormatLogLine(t *testing.T) {
	input := `time=2026-01-18T06:50:46.074+01:00 level=INFO msg="Registered predicted layer" features="3 " year=2030 color=#e6194b id=predicted_4f1c2a9e8b1747d3bb0f6f75c2f0aa11`
	expected := "06:50:46 Registered predicted layer (color=#e6194b, features=3, year=2030)"

	result := formatLogLine(input)
	if result != expected {
		t.Errorf("Expected '%s', got '%s'", expected, result)
	}
}
