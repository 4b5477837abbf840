package opcua

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/PickNikRobotics/armtrace/internal/domain"
	"github.com/PickNikRobotics/armtrace/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session
// against a robot controller that exposes per-joint telemetry nodes.
type Config struct {
	Endpoint         string            `yaml:"endpoint"`
	Username         string            `yaml:"username"`
	Password         string            `yaml:"password"`
	SecurityMode     string            `yaml:"security_mode"`
	SecurityPolicy   string            `yaml:"security_policy"`
	ApplicationName  string            `yaml:"application_name"`
	PublishInterval  time.Duration     `yaml:"publish_interval"`
	SamplingInterval time.Duration     `yaml:"sampling_interval"`
	Joints           []JointNodeConfig `yaml:"joints"`
}

// JointNodeConfig binds one named joint to its telemetry nodes. CommandNode
// is optional; controllers that do not republish the command stream leave it
// empty and the recorder zero-fills the command column.
type JointNodeConfig struct {
	Name         string `yaml:"name"`
	PositionNode string `yaml:"position_node"`
	VelocityNode string `yaml:"velocity_node"`
	EffortNode   string `yaml:"effort_node"`
	CommandNode  string `yaml:"command_node"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "armtrace"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 10 * time.Millisecond
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Joints) == 0 {
		return errors.New("at least one joint must be configured")
	}
	for i, j := range c.Joints {
		if j.Name == "" {
			return fmt.Errorf("joint %d: name is required", i)
		}
		if j.PositionNode == "" || j.VelocityNode == "" || j.EffortNode == "" {
			return fmt.Errorf("joint %q: position, velocity and effort nodes are required", j.Name)
		}
	}
	return nil
}

type fieldKind int

const (
	fieldPosition fieldKind = iota
	fieldVelocity
	fieldEffort
	fieldCommand
)

type nodeBinding struct {
	joint int
	field fieldKind
}

// Source monitors every configured joint node and reassembles the scalar
// data changes into whole joint snapshots: after each publish notification
// the current value table is emitted as one JointSnapshot, and as one
// CommandSnapshot whenever a command node changed.
type Source struct {
	cfg  Config
	mode domain.CommandMode

	mu        sync.Mutex
	client    *opcua.Client
	sub       *opcua.Subscription
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	handleMap map[uint32]nodeBinding
	started   bool

	// value tables, touched only by the consume goroutine once started
	names      []string
	positions  []float64
	velocities []float64
	efforts    []float64
	commands   []float64
}

func NewSource(cfg Config, mode domain.CommandMode) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	names := make([]string, len(cfg.Joints))
	for i, j := range cfg.Joints {
		names[i] = j.Name
	}
	return &Source{
		cfg:        cfg,
		mode:       mode,
		names:      names,
		positions:  make([]float64, len(cfg.Joints)),
		velocities: make([]float64, len(cfg.Joints)),
		efforts:    make([]float64, len(cfg.Joints)),
		commands:   make([]float64, len(cfg.Joints)),
	}, nil
}

func (s *Source) Start(states chan<- *domain.JointSnapshot, commands chan<- *domain.CommandSnapshot) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("opcua source already started")
	}
	// Claim the source before connecting so a concurrent Start cannot connect
	// too; error paths release the claim.
	s.started = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	client, err := opcua.NewClient(s.cfg.Endpoint, s.buildClientOptions()...)
	if err != nil {
		s.cleanupOnError(ctx, cancel, nil, nil)
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		s.cleanupOnError(ctx, cancel, nil, nil)
		return fmt.Errorf("opcua connect: %w", err)
	}

	notifyCh := make(chan *opcua.PublishNotificationData, len(s.cfg.Joints)*8)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: s.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		s.cleanupOnError(ctx, cancel, nil, client)
		return fmt.Errorf("opcua subscribe: %w", err)
	}

	handleMap := make(map[uint32]nodeBinding)
	var handle uint32
	for i, joint := range s.cfg.Joints {
		nodes := []struct {
			id    string
			field fieldKind
		}{
			{joint.PositionNode, fieldPosition},
			{joint.VelocityNode, fieldVelocity},
			{joint.EffortNode, fieldEffort},
			{joint.CommandNode, fieldCommand},
		}
		for _, n := range nodes {
			if n.id == "" {
				continue
			}
			handle++
			if err := s.monitor(ctx, sub, n.id, handle); err != nil {
				s.cleanupOnError(ctx, cancel, sub, client)
				return err
			}
			handleMap[handle] = nodeBinding{joint: i, field: n.field}
		}
	}

	s.mu.Lock()
	s.client = client
	s.sub = sub
	s.cancel = cancel
	s.handleMap = handleMap
	s.mu.Unlock()

	s.wg.Add(1)
	go s.consume(ctx, notifyCh, states, commands)
	return nil
}

func (s *Source) monitor(ctx context.Context, sub *opcua.Subscription, id string, handle uint32) error {
	nodeID, err := ua.ParseNodeID(id)
	if err != nil {
		return fmt.Errorf("parse node id %q: %w", id, err)
	}
	req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, handle)
	if s.cfg.SamplingInterval > 0 {
		req.RequestedParameters.SamplingInterval = float64(s.cfg.SamplingInterval / time.Millisecond)
	}
	res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
	if err != nil {
		return fmt.Errorf("monitor node %q: %w", id, err)
	}
	if len(res.Results) == 0 {
		return fmt.Errorf("monitor node %q failed: empty result", id)
	}
	if res.Results[0].StatusCode != ua.StatusOK {
		return fmt.Errorf("monitor node %q failed: %s", id, res.Results[0].StatusCode)
	}
	return nil
}

func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	sub := s.sub
	client := s.client
	s.started = false
	s.cancel = nil
	s.sub = nil
	s.client = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()

	var err error
	if sub != nil {
		if e := sub.Cancel(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	if client != nil {
		if e := client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}

	s.wg.Wait()
	return err
}

func (s *Source) consume(ctx context.Context, ch <-chan *opcua.PublishNotificationData, states chan<- *domain.JointSnapshot, commands chan<- *domain.CommandSnapshot) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-ch:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				log.Printf("opcua: notification error: %v", notif.Error)
				continue
			}
			data, ok := notif.Value.(*ua.DataChangeNotification)
			if !ok {
				continue
			}
			state, cmd := s.applyDataChange(data)
			if state != nil {
				select {
				case <-ctx.Done():
					return
				case states <- state:
				}
			}
			if cmd != nil {
				select {
				case <-ctx.Done():
					return
				case commands <- cmd:
				}
			}
		}
	}
}

// applyDataChange folds the changed monitored items into the value tables
// and returns the snapshots to publish: the full state always, the command
// only when a command node changed.
func (s *Source) applyDataChange(data *ua.DataChangeNotification) (*domain.JointSnapshot, *domain.CommandSnapshot) {
	var (
		stamp      time.Time
		cmdChanged bool
		any        bool
	)

	for _, item := range data.MonitoredItems {
		binding, ok := s.handleMap[item.ClientHandle]
		if !ok {
			continue
		}
		fv, ok := variantToFloat(item.Value.Value)
		if !ok {
			log.Printf("opcua: skipping handle %d due to unsupported type %T", item.ClientHandle, item.Value.Value)
			continue
		}

		switch binding.field {
		case fieldPosition:
			s.positions[binding.joint] = fv
		case fieldVelocity:
			s.velocities[binding.joint] = fv
		case fieldEffort:
			s.efforts[binding.joint] = fv
		case fieldCommand:
			s.commands[binding.joint] = fv
			cmdChanged = true
		}
		any = true

		ts := item.Value.ServerTimestamp
		if ts.IsZero() {
			ts = item.Value.SourceTimestamp
		}
		if ts.After(stamp) {
			stamp = ts
		}
	}

	if !any {
		return nil, nil
	}
	if stamp.IsZero() {
		stamp = time.Now()
	}

	state := &domain.JointSnapshot{
		Stamp:      stamp,
		Names:      s.names,
		Positions:  append([]float64(nil), s.positions...),
		Velocities: append([]float64(nil), s.velocities...),
		Efforts:    append([]float64(nil), s.efforts...),
	}
	var cmd *domain.CommandSnapshot
	if cmdChanged {
		cmd = &domain.CommandSnapshot{
			Mode:   s.mode,
			Values: append([]float64(nil), s.commands...),
		}
	}
	return state, cmd
}

func (s *Source) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(s.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(s.cfg.SecurityPolicy)),
		opcua.ApplicationName(s.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if s.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(s.cfg.Username, s.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

// cleanupOnError tears down a partially built session and releases the
// started claim so the source can be started again.
func (s *Source) cleanupOnError(ctx context.Context, cancel context.CancelFunc, sub *opcua.Subscription, client *opcua.Client) {
	cancel()
	if sub != nil {
		_ = sub.Cancel(ctx)
	}
	if client != nil {
		_ = client.Close(ctx)
	}
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.TelemetrySource = (*Source)(nil)
