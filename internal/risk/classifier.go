// Package risk classifies pollutant readings into severity categories.
// Classification is a pure function of the readings so historical data
// can be re-evaluated consistently; assessments are never persisted.
package risk

// Category is an ordinal severity level. Higher is worse.
type Category int

const (
	Low Category = iota + 1
	Moderate
	High
	VeryHigh
	Severe
)

func (c Category) String() string {
	switch c {
	case Low:
		return "Low"
	case Moderate:
		return "Moderate"
	case High:
		return "High"
	case VeryHigh:
		return "Very High"
	case Severe:
		return "Severe"
	}
	return "Unknown"
}

// Reading is one pair of pollutant concentrations (µg/m³).
type Reading struct {
	O3  float64
	NO2 float64
}

// Assessment is the derived risk for a reading.
type Assessment struct {
	Category          Category `json:"-"`
	CategoryLabel     string   `json:"category"`
	DominantPollutant string   `json:"dominantPollutant"`
	Synergistic       bool     `json:"isSynergistic"`
	RiskFactors       []string `json:"riskFactors"`

	O3Level  string `json:"o3Level"`
	NO2Level string `json:"no2Level"`
}

// Health-impact descriptions per pollutant bucket, used in alert emails.
var (
	o3Factors = map[Category]string{
		High:     "Respiratory irritation likely in sensitive groups.",
		VeryHigh: "Lung function reduction predicted; asthma triggers active.",
		Severe:   "General population at risk of respiratory distress.",
	}
	no2Factors = map[Category]string{
		High:     "Inflammation of airways; reduced lung function.",
		VeryHigh: "Increased susceptibility to respiratory infections.",
		Severe:   "Severe aggravation of heart/lung diseases.",
	}
)

const (
	synergisticFactor = "Combined toxic effect: Immediate health warning required."
	safeFactor        = "Air quality is within safe limits."
)

// LevelO3 buckets an O3 concentration. Boundaries are inclusive on the
// upper side of the lower bucket: 100 is Moderate, not Low.
func LevelO3(v float64) Category {
	switch {
	case v < 100:
		return Low
	case v < 160:
		return Moderate
	case v < 200:
		return High
	case v < 300:
		return VeryHigh
	}
	return Severe
}

// LevelNO2 buckets an NO2 concentration.
func LevelNO2(v float64) Category {
	switch {
	case v < 40:
		return Low
	case v < 80:
		return Moderate
	case v < 180:
		return High
	case v < 280:
		return VeryHigh
	}
	return Severe
}

// Classify maps a reading to its assessment.
//
// Co-occurring high O3 and NO2 produce worse health outcomes than
// either alone, so o3 > 160 && no2 > 100 forces Severe regardless of
// the individual buckets. Otherwise the worse pollutant wins, with a
// tie reported as both dominant. Risk factors are listed for buckets at
// High or above only.
func Classify(o3, no2 float64) Assessment {
	o3Level := LevelO3(o3)
	no2Level := LevelNO2(no2)

	a := Assessment{
		O3Level:  o3Level.String(),
		NO2Level: no2Level.String(),
	}

	if o3 > 160 && no2 > 100 {
		a.Category = Severe
		a.Synergistic = true
		a.DominantPollutant = "Combined (O3 + NO2)"
		a.RiskFactors = []string{
			synergisticFactor,
			o3Factors[Severe],
			no2Factors[Severe],
		}
		a.CategoryLabel = a.Category.String()
		return a
	}

	switch {
	case o3Level > no2Level:
		a.Category = o3Level
		a.DominantPollutant = "O3"
	case no2Level > o3Level:
		a.Category = no2Level
		a.DominantPollutant = "NO2"
	default:
		a.Category = o3Level
		a.DominantPollutant = "O3 & NO2"
	}

	if f, ok := o3Factors[o3Level]; ok {
		a.RiskFactors = append(a.RiskFactors, f)
	}
	if f, ok := no2Factors[no2Level]; ok {
		a.RiskFactors = append(a.RiskFactors, f)
	}
	if len(a.RiskFactors) == 0 {
		a.RiskFactors = []string{safeFactor}
	}

	a.CategoryLabel = a.Category.String()
	return a
}
