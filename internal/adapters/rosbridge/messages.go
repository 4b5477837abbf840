package rosbridge

import (
	"encoding/json"
	"time"

	"github.com/PickNikRobotics/armtrace/internal/domain"
)

// Wire types for the rosbridge JSON protocol. Only the ops and message
// shapes the recorder consumes are modeled.

type envelope struct {
	Op    string          `json:"op"`
	Topic string          `json:"topic"`
	Msg   json.RawMessage `json:"msg,omitempty"`
}

type subscribeOp struct {
	Op          string `json:"op"`
	Topic       string `json:"topic"`
	Type        string `json:"type,omitempty"`
	QueueLength int    `json:"queue_length,omitempty"`
}

type unsubscribeOp struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
}

type rosTime struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

func (t rosTime) Time() time.Time {
	if t.Secs == 0 && t.Nsecs == 0 {
		return time.Time{}
	}
	return time.Unix(t.Secs, t.Nsecs)
}

// jointStateMsg mirrors sensor_msgs/JointState.
type jointStateMsg struct {
	Header struct {
		Stamp rosTime `json:"stamp"`
	} `json:"header"`
	Name     []string  `json:"name"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity"`
	Effort   []float64 `json:"effort"`
}

// snapshot converts the message, falling back to the given receipt time when
// the publisher left the header stamp unset.
func (m *jointStateMsg) snapshot(received time.Time) *domain.JointSnapshot {
	stamp := m.Header.Stamp.Time()
	if stamp.IsZero() {
		stamp = received
	}
	return &domain.JointSnapshot{
		Stamp:      stamp,
		Names:      m.Name,
		Positions:  m.Position,
		Velocities: m.Velocity,
		Efforts:    m.Effort,
	}
}

// jointPositionsMsg mirrors baxter_msgs/JointPositions.
type jointPositionsMsg struct {
	Names  []string  `json:"names"`
	Angles []float64 `json:"angles"`
}

// jointVelocitiesMsg mirrors baxter_msgs/JointVelocities.
type jointVelocitiesMsg struct {
	Names      []string  `json:"names"`
	Velocities []float64 `json:"velocities"`
}
