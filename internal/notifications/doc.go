// Package notifications delivers workflow events via pluggable notifiers.
//
// The default implementation publishes JSON events to an MQTT broker using
// the topic configured in config.toml and gracefully degrades to a no-op when
// no broker is configured. Event categories can be toggled individually so an
// operator can subscribe to deployments without drowning in per-dataset
// chatter.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
