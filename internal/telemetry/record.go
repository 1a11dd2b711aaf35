package telemetry

import "time"

// Record is one raw sensor sample from a turbine device. Values are immutable
// once read; unparseable numeric cells are NaN rather than load failures.
type Record struct {
	TurbineID string
	DeviceID  string
	EventTime time.Time

	RPS       float64
	Voltage   float64
	QX        float64
	QY        float64
	QZ        float64
	QW        float64
	AccelX    float64
	AccelY    float64
	AccelZ    float64
	Temp      float64
	Humidity  float64
	Pressure  float64
	Gas       float64
	WindSpeed float64
}
