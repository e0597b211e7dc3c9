package alerts

// Job is the queue payload for one alert dispatch. It deliberately
// duplicates the fields needed to render notifications so a worker can
// deliver even if the alert row is momentarily unreadable.
type Job struct {
	AlertID     string   `json:"alertId"`
	Recipients  []string `json:"recipients"`
	Category    string   `json:"category"`
	Pollutant   string   `json:"pollutant"`
	RiskFactors []string `json:"riskFactors"`
	Forecast    string   `json:"forecast"`
	RegionName  string   `json:"regionName"`
	Title       string   `json:"title"`
}
