package rosbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PickNikRobotics/armtrace/internal/domain"
	"github.com/PickNikRobotics/armtrace/internal/ports"
)

// Config captures the runtime details required to open a rosbridge session.
type Config struct {
	URL                  string        `yaml:"url"`
	Arm                  string        `yaml:"arm"`
	StateTopic           string        `yaml:"state_topic"`
	PositionCommandTopic string        `yaml:"position_command_topic"`
	VelocityCommandTopic string        `yaml:"velocity_command_topic"`
	QueueLength          int           `yaml:"queue_length"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Arm == "" {
		c.Arm = "left"
	}
	if c.StateTopic == "" {
		c.StateTopic = "/robot/limb/" + c.Arm + "/joint_states"
	}
	if c.PositionCommandTopic == "" {
		c.PositionCommandTopic = "/robot/limb/" + c.Arm + "/command_joint_angles"
	}
	if c.VelocityCommandTopic == "" {
		c.VelocityCommandTopic = "/robot/limb/" + c.Arm + "/command_joint_velocities"
	}
	if c.QueueLength <= 0 {
		c.QueueLength = 1
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	return nil
}

// Source subscribes to the joint-state topic and to exactly one of the two
// command topics, selected once at construction by the command mode, and
// republishes decoded snapshots on the output channels.
type Source struct {
	cfg  Config
	mode domain.CommandMode

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewSource(cfg Config, mode domain.CommandMode) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{cfg: cfg, mode: mode}, nil
}

// commandTopic is the single command topic this session listens to.
func (s *Source) commandTopic() string {
	if s.mode == domain.VelocityMode {
		return s.cfg.VelocityCommandTopic
	}
	return s.cfg.PositionCommandTopic
}

func (s *Source) Start(states chan<- *domain.JointSnapshot, commands chan<- *domain.CommandSnapshot) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("rosbridge source already started")
	}
	// Claim the source before dialing so a concurrent Start cannot dial too;
	// error paths release the claim.
	s.started = true
	s.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.Dial(s.cfg.URL, nil)
	if err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return fmt.Errorf("rosbridge dial %s: %w", s.cfg.URL, err)
	}

	subs := []subscribeOp{
		{Op: "subscribe", Topic: s.cfg.StateTopic, Type: "sensor_msgs/JointState", QueueLength: s.cfg.QueueLength},
		{Op: "subscribe", Topic: s.commandTopic(), QueueLength: s.cfg.QueueLength},
	}
	for _, sub := range subs {
		if err := conn.WriteJSON(sub); err != nil {
			conn.Close()
			s.mu.Lock()
			s.started = false
			s.mu.Unlock()
			return fmt.Errorf("rosbridge subscribe %s: %w", sub.Topic, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.consume(ctx, conn, states, commands)
	return nil
}

func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	conn := s.conn
	cancel := s.cancel
	s.started = false
	s.conn = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var err error
	if conn != nil {
		for _, topic := range []string{s.cfg.StateTopic, s.commandTopic()} {
			_ = conn.WriteJSON(unsubscribeOp{Op: "unsubscribe", Topic: topic})
		}
		// Closing the socket unblocks the read loop.
		if e := conn.Close(); e != nil {
			err = e
		}
	}

	s.wg.Wait()
	return err
}

func (s *Source) consume(ctx context.Context, conn *websocket.Conn, states chan<- *domain.JointSnapshot, commands chan<- *domain.CommandSnapshot) {
	defer s.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("rosbridge: read: %v", err)
			}
			return
		}
		s.dispatch(ctx, data, time.Now(), states, commands)
	}
}

// dispatch decodes one rosbridge frame and forwards it to the matching
// output channel. Unknown ops and topics are ignored.
func (s *Source) dispatch(ctx context.Context, data []byte, received time.Time, states chan<- *domain.JointSnapshot, commands chan<- *domain.CommandSnapshot) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("rosbridge: bad frame: %v", err)
		return
	}
	if env.Op != "publish" {
		return
	}

	switch env.Topic {
	case s.cfg.StateTopic:
		var msg jointStateMsg
		if err := json.Unmarshal(env.Msg, &msg); err != nil {
			log.Printf("rosbridge: bad joint state on %s: %v", env.Topic, err)
			return
		}
		send(ctx, states, msg.snapshot(received))

	case s.commandTopic():
		cmd, err := s.decodeCommand(env.Msg)
		if err != nil {
			log.Printf("rosbridge: bad command on %s: %v", env.Topic, err)
			return
		}
		send(ctx, commands, cmd)
	}
}

func (s *Source) decodeCommand(raw json.RawMessage) (*domain.CommandSnapshot, error) {
	if s.mode == domain.VelocityMode {
		var msg jointVelocitiesMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return &domain.CommandSnapshot{Mode: domain.VelocityMode, Values: msg.Velocities}, nil
	}
	var msg jointPositionsMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return &domain.CommandSnapshot{Mode: domain.PositionMode, Values: msg.Angles}, nil
}

func send[T any](ctx context.Context, out chan<- T, v T) {
	select {
	case <-ctx.Done():
	case out <- v:
	}
}

var _ ports.TelemetrySource = (*Source)(nil)
