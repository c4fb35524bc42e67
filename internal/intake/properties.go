package intake

// DefaultDynambProperties is the allow-list of dynamic ambient properties.
var DefaultDynambProperties = []string{
	"acceleration",
	"accelerationSamplingRate",
	"accelerationTimeSeries",
	"ammoniaConcentration",
	"amperage",
	"amperages",
	"angleOfRotation",
	"batteryPercentage",
	"batteryVoltage",
	"carbonDioxideConcentration",
	"carbonMonoxideConcentration",
	"dissolvedOxygen",
	"distance",
	"elevation",
	"heading",
	"heartRate",
	"illuminance",
	"interactionDigest",
	"isButtonPressed",
	"isContactDetected",
	"isHealthy",
	"isMotionDetected",
	"isLiquidDetected",
	"levelPercentage",
	"magneticField",
	"methaneConcentration",
	"nearest",
	"nitrogenDioxideConcentration",
	"numberOfOccupants",
	"passageCounts",
	"pm1.0",
	"pm2.5",
	"pm10",
	"position",
	"pressure",
	"pressures",
	"relativeHumidity",
	"soundPressure",
	"speed",
	"temperature",
	"temperatures",
	"txCount",
	"unicodeCodePoints",
	"uptime",
	"velocityOverall",
	"volatileOrganicCompoundsConcentration",
	"voltage",
	"voltages",
}

// DefaultStatidProperties is the allow-list of static identification
// properties.
var DefaultStatidProperties = []string{
	"appearance",
	"deviceIds",
	"languages",
	"name",
	"uri",
	"uuids",
	"version",
}

// propertySet is an allow-list lookup.
type propertySet map[string]struct{}

func newPropertySet(names []string) propertySet {
	s := make(propertySet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s propertySet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// keep returns the allowed subset of props, or nil if none are allowed.
func (s propertySet) keep(props map[string]any) map[string]any {
	var out map[string]any
	for k, v := range props {
		if !s.has(k) {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(props))
		}
		out[k] = v
	}
	return out
}
