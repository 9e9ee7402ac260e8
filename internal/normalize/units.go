package normalize

import (
	"strconv"
	"strings"
)

// UnitFamily groups canonical units for measurement-kind classification.
type UnitFamily string

// Unit families used by the semantic stage.
const (
	FamilyDistance    UnitFamily = "Distance"
	FamilyWeight      UnitFamily = "Weight"
	FamilyTime        UnitFamily = "Time"
	FamilyTemperature UnitFamily = "Temperature"
	FamilySound       UnitFamily = "Sound_Level"
	FamilyVolume      UnitFamily = "Volume"
	FamilyGeneral     UnitFamily = "General"
)

// UnitNormalizer expands unit abbreviations to their canonical long forms and
// classifies them into families.
type UnitNormalizer struct {
	aliases  map[string]string
	families map[string]UnitFamily
}

// NewUnitNormalizer creates a unit normalizer with the built-in alias table.
func NewUnitNormalizer() *UnitNormalizer {
	return &UnitNormalizer{
		aliases: map[string]string{
			"ft":          "feet",
			"foot":        "feet",
			"in":          "inches",
			"inch":        "inches",
			"yd":          "yards",
			"yard":        "yards",
			"mi":          "miles",
			"mile":        "miles",
			"m":           "meters",
			"meter":       "meters",
			"metre":       "meters",
			"metres":      "meters",
			"cm":          "centimeters",
			"centimetre":  "centimeters",
			"centimetres": "centimeters",
			"mm":          "millimeters",
			"millimetre":  "millimeters",
			"millimetres": "millimeters",
			"km":          "kilometers",
			"kilometre":   "kilometers",
			"kilometres":  "kilometers",
			"lb":          "pounds",
			"lbs":         "pounds",
			"pound":       "pounds",
			"oz":          "ounces",
			"ounce":       "ounces",
			"ton":         "tons",
			"kg":          "kilograms",
			"kilogram":    "kilograms",
			"g":           "grams",
			"gram":        "grams",
			"mg":          "milligrams",
			"gal":         "gallons",
			"gallon":      "gallons",
			"l":           "liters",
			"liter":       "liters",
			"litre":       "liters",
			"litres":      "liters",
			"ml":          "milliliters",
			"sec":         "seconds",
			"second":      "seconds",
			"min":         "minutes",
			"minute":      "minutes",
			"hr":          "hours",
			"hrs":         "hours",
			"hour":        "hours",
			"day":         "days",
			"week":        "weeks",
			"year":        "years",
			"db":          "decibels",
			"dba":         "decibels",
			"decibel":     "decibels",
			"degree":      "degrees",
			"volt":        "volts",
			"amp":         "amps",
			"watt":        "watts",
		},
		families: map[string]UnitFamily{
			"feet": FamilyDistance, "inches": FamilyDistance,
			"yards": FamilyDistance, "miles": FamilyDistance,
			"meters": FamilyDistance, "centimeters": FamilyDistance,
			"millimeters": FamilyDistance, "kilometers": FamilyDistance,
			"pounds": FamilyWeight, "ounces": FamilyWeight,
			"tons": FamilyWeight, "kilograms": FamilyWeight,
			"grams": FamilyWeight, "milligrams": FamilyWeight,
			"seconds": FamilyTime, "minutes": FamilyTime,
			"hours": FamilyTime, "days": FamilyTime,
			"weeks": FamilyTime, "years": FamilyTime,
			"degrees": FamilyTemperature, "fahrenheit": FamilyTemperature,
			"celsius": FamilyTemperature,
			"decibels": FamilySound,
			"gallons":  FamilyVolume, "liters": FamilyVolume,
			"milliliters": FamilyVolume,
		},
	}
}

// Normalize converts a unit surface to its canonical long form.
func (n *UnitNormalizer) Normalize(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.TrimSuffix(u, ".")
	if canonical, ok := n.aliases[u]; ok {
		return canonical
	}
	return u
}

// Family classifies a canonical unit.
func (n *UnitNormalizer) Family(canonicalUnit string) UnitFamily {
	if f, ok := n.families[strings.ToLower(canonicalUnit)]; ok {
		return f
	}
	return FamilyGeneral
}

// ParseMeasurement splits a measurement surface like "10 ft" or "6.5 feet"
// into numeric value and canonical unit.
func (n *UnitNormalizer) ParseMeasurement(text string) (float64, string, bool) {
	trimmed := strings.TrimSpace(text)
	split := len(trimmed)
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if (c < '0' || c > '9') && c != '.' && c != ',' {
			split = i
			break
		}
	}
	if split == 0 || split == len(trimmed) {
		return 0, "", false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(trimmed[:split], ",", ""), 64)
	if err != nil {
		return 0, "", false
	}
	unit := n.Normalize(trimmed[split:])
	if unit == "" {
		return 0, "", false
	}
	return value, unit, true
}
