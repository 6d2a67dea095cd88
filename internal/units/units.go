// Package units provides the ranging conversions and the display units for
// distances.
package units

// SpeedOfSoundCMPerMicro is the speed of sound in cm/µs at room temperature.
const SpeedOfSoundCMPerMicro = 0.034

// EchoToCentimetres converts a round-trip echo duration in microseconds to
// a one-way distance in centimetres.
func EchoToCentimetres(micros float64) float64 {
	return micros * SpeedOfSoundCMPerMicro / 2
}

// Distance unit constants
const (
	CM   = "cm"
	MM   = "mm"
	Inch = "in"
)

// ValidUnits contains all valid distance units
var ValidUnits = []string{CM, MM, Inch}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "cm, mm, in"
}

// ConvertDistance converts a distance in centimetres to the target units.
// Unknown units are treated as centimetres.
func ConvertDistance(cm float64, targetUnits string) float64 {
	switch targetUnits {
	case MM:
		return cm * 10
	case Inch:
		return cm / 2.54
	default:
		return cm
	}
}
