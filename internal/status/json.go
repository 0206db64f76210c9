package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/chamber-control/internal/temp"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string           `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	State         string           `json:"state"`
	Mode          string           `json:"mode"`
	Beer          ProbeJSON        `json:"beer"`
	Fridge        ProbeJSON        `json:"fridge"`
	Estimates     EstimatesJSON    `json:"estimates"`
	Outputs       OutputsJSON      `json:"outputs"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	MQTT          MQTTStatus       `json:"mqtt"`
	Door          DoorJSON         `json:"door"`
	Annotations   []AnnotationJSON `json:"annotations,omitempty"`
	Config        ConfigJSON       `json:"config"`
}

// ProbeJSON pairs a reading with its setting. Undefined values encode as null.
type ProbeJSON struct {
	Temp    temp.Temp `json:"temp"`
	Setting temp.Temp `json:"setting"`
}

// EstimatesJSON reports the overshoot estimator.
type EstimatesJSON struct {
	Peak          temp.Temp `json:"peak"`
	PosPeak       temp.Temp `json:"pos_peak"`
	NegPeak       temp.Temp `json:"neg_peak"`
	PosPeakDetect bool      `json:"pos_peak_detect"`
	NegPeakDetect bool      `json:"neg_peak_detect"`
}

// OutputsJSON reports relay state.
type OutputsJSON struct {
	Cooler bool `json:"cooler"`
	Heater bool `json:"heater"`
	Light  bool `json:"light"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// DoorJSON is the JSON representation of door edge counts.
type DoorJSON struct {
	Opened int `json:"opened"`
	Closed int `json:"closed"`
}

// AnnotationJSON is one recorded controller event.
type AnnotationJSON struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs    int64  `json:"poll_ms"`
	Broker    string `json:"broker"`
	HTTPPort  string `json:"http_port"`
	Indicator string `json:"indicator"`
	Storage   string `json:"storage"`
	Simulate  bool   `json:"simulate,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:  state,
		Mode:   snap.Mode.String(),
		Beer:   ProbeJSON{Temp: snap.BeerTemp, Setting: snap.BeerSetting},
		Fridge: ProbeJSON{Temp: snap.FridgeTemp, Setting: snap.FridgeSetting},
		Estimates: EstimatesJSON{
			Peak:          snap.Estimates.EstimatedPeak,
			PosPeak:       snap.Estimates.PosPeakEstimate,
			NegPeak:       snap.Estimates.NegPeakEstimate,
			PosPeakDetect: snap.PosPeakDetect,
			NegPeakDetect: snap.NegPeakDetect,
		},
		Outputs: OutputsJSON{
			Cooler: snap.Outputs.Cooler,
			Heater: snap.Outputs.Heater,
			Light:  snap.Outputs.Light,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Door:          DoorJSON{Opened: snap.Door.Opened, Closed: snap.Door.Closed},
		Config: ConfigJSON{
			PollMs:    snap.Config.PollMs,
			Broker:    snap.Config.Broker,
			HTTPPort:  snap.Config.HTTPPort,
			Indicator: snap.Config.Indicator,
			Storage:   snap.Config.Storage,
			Simulate:  snap.Config.Simulate,
		},
	}
	for _, a := range snap.Annotations {
		inner.Annotations = append(inner.Annotations, AnnotationJSON{
			Timestamp: a.Time.UTC().Format(time.RFC3339),
			Message:   a.Message,
		})
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// Annotations are left out; they are published as events of their own.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	inner.Annotations = nil

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
