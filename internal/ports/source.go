package ports

import "github.com/PickNikRobotics/armtrace/internal/domain"

// TelemetrySource delivers the two inbound streams: joint states and joint
// commands. Implementations own their transport (rosbridge, OPC UA, fakes)
// and push every received message; the recorder keeps only the latest.
type TelemetrySource interface {
	Start(states chan<- *domain.JointSnapshot, commands chan<- *domain.CommandSnapshot) error
	Stop() error
}
