package stage

import "fmt"

// Health is the result of a stage's HealthCheck. Detail is set only when the
// stage cannot run, naming the missing configuration or dependency.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports a stage that is ready to run.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage that cannot run and why.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

func (h Health) String() string {
	if h.Ready {
		return fmt.Sprintf("%s: ready", h.Name)
	}
	return fmt.Sprintf("%s: %s", h.Name, h.Detail)
}
