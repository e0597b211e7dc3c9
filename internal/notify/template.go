package notify

import (
	"bytes"
	"html/template"
)

// Per-department branding for alert emails.
var deptColors = map[string]string{
	"Health Dept":        "#138808",
	"Traffic Police":     "#000080",
	"Education Board":    "#FF9933",
	"Industrial Control": "#8B0000",
}

var deptIcons = map[string]string{
	"Health Dept":        "🏥",
	"Traffic Police":     "🚦",
	"Education Board":    "🎓",
	"Industrial Control": "🏭",
}

// Suggested actions per department and severity category, shown in the
// "Recommended Actions" section of the alert email.
var deptSuggestions = map[string]map[string][]string{
	"Health Dept": {
		"High": {
			"Issue health advisories for sensitive groups.",
			"Ensure hospitals are prepared for respiratory cases.",
			"Distribute masks in affected areas.",
		},
		"Very High": {
			"Issue general health advisory to avoid outdoor exertion.",
			"Set up emergency respiratory clinics.",
			"Ensure availability of oxygen and nebulizers.",
		},
		"Severe": {
			"Declare health emergency.",
			"Advise everyone to stay indoors.",
			"Mobilize all medical resources.",
		},
	},
	"Traffic Police": {
		"High": {
			"Increase traffic management at hotspots.",
			"Enforce pollution checks strictly.",
			"Divert heavy vehicles from city centers.",
		},
		"Very High": {
			"Restrict entry of non-essential trucks.",
			"Enforce odd-even scheme if mandated.",
			"Stop construction activities near roads.",
		},
		"Severe": {
			"Halt all non-essential vehicular movement.",
			"Deploy full force for emergency traffic control.",
		},
	},
	"Education Board": {
		"High": {
			"Suspend outdoor sports and assemblies.",
			"Advise masks for students.",
		},
		"Very High": {
			"Shift classes online where possible.",
			"Close primary schools if advised.",
		},
		"Severe": {
			"Close all schools and colleges.",
			"Suspend all outdoor academic activity.",
		},
	},
	"Industrial Control": {
		"High": {
			"Inspect high-emission units.",
			"Enforce emission norms at hotspots.",
		},
		"Very High": {
			"Order load reduction for heavy industry.",
			"Suspend operations of non-compliant units.",
		},
		"Severe": {
			"Shut down non-essential industrial operations.",
			"Activate emergency emission response plan.",
		},
	},
}

// AlertEmail is the data rendered into the department template.
type AlertEmail struct {
	Department  string
	Title       string
	RegionName  string
	Category    string
	Pollutant   string
	Forecast    string
	RiskFactors []string

	// Derived at render time.
	Color       string
	Icon        string
	AlertColor  string
	Suggestions []string
}

var alertTmpl = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Pollution Alert</title></head>
<body style="font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0; background-color: #f4f4f4;">
  <div style="max-width: 600px; margin: 20px auto; background: #ffffff; border-radius: 8px; overflow: hidden;">
    <div style="background-color: {{.Color}}; color: #ffffff; padding: 20px; text-align: center;">
      <div style="font-size: 40px; margin-bottom: 10px;">{{.Icon}}</div>
      <h1 style="margin: 0; font-size: 24px;">{{.Title}}</h1>
      <div style="font-size: 14px; text-transform: uppercase; letter-spacing: 1px; opacity: 0.9; margin-top: 5px;">{{.Department}}</div>
    </div>
    <div style="padding: 30px;">
      <div style="border-left: 5px solid {{.AlertColor}}; padding: 15px; margin-bottom: 20px; border-radius: 4px; background-color: #fff3cd;">
        Pollution level <strong>{{.Category}}</strong> forecast for <strong>{{.RegionName}}</strong>. Dominant pollutant: {{.Pollutant}}.
      </div>
      <h2 style="color: {{.Color}}; font-size: 18px;">Forecast</h2>
      <p>{{.Forecast}}</p>
      <h2 style="color: {{.Color}}; font-size: 18px;">Health Risk Factors</h2>
      <ul style="margin: 0; padding-left: 20px;">
        {{range .RiskFactors}}<li style="margin-bottom: 8px;">{{.}}</li>{{end}}
      </ul>
      {{if .Suggestions}}
      <h2 style="color: {{.Color}}; font-size: 18px;">Recommended Actions</h2>
      <ul style="margin: 0; padding-left: 20px;">
        {{range .Suggestions}}<li style="margin-bottom: 8px;">{{.}}</li>{{end}}
      </ul>
      {{end}}
    </div>
    <div style="background-color: #333; color: #fff; text-align: center; padding: 15px; font-size: 12px;">
      Automated dispatch from the Air Quality Command Center. Do not reply.
    </div>
  </div>
</body>
</html>`))

// RenderAlertEmail renders the department-branded HTML for one alert.
func RenderAlertEmail(data AlertEmail) (string, error) {
	data.Color = deptColors[data.Department]
	if data.Color == "" {
		data.Color = "#333333"
	}
	data.Icon = deptIcons[data.Department]
	if data.Icon == "" {
		data.Icon = "📢"
	}
	data.AlertColor = "#ffc107"
	if data.Category == "Severe" {
		data.AlertColor = "#dc3545"
	}
	if bySeverity, ok := deptSuggestions[data.Department]; ok {
		data.Suggestions = bySeverity[data.Category]
	}

	var buf bytes.Buffer
	if err := alertTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
