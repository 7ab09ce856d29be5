package opcua

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ghalamif/SlopeGuard/internal/domain"
	"github.com/ghalamif/SlopeGuard/internal/ports"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
)

// Reading fields an OPC UA node can feed.
const (
	FieldTemperature     = "temperature"
	FieldVibrationLevel  = "vibration_level"
	FieldCrackWidth      = "crack_width"
	FieldTiltAngle       = "tilt_angle"
	FieldSeismicActivity = "seismic_activity"
	FieldMoistureLevel   = "moisture_level"
	FieldMotionScore     = "motion_score"
)

var knownFields = map[string]bool{
	FieldTemperature:     true,
	FieldVibrationLevel:  true,
	FieldCrackWidth:      true,
	FieldTiltAngle:       true,
	FieldSeismicActivity: true,
	FieldMoistureLevel:   true,
	FieldMotionScore:     true,
}

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	SourceID         string        `yaml:"source_id"`
	Nodes            []NodeConfig  `yaml:"nodes"`
	// StartSeq is set by the runtime from the newest WAL id.
	StartSeq uint64 `yaml:"-"`
}

// NodeConfig maps a monitored tag onto one reading field.
type NodeConfig struct {
	NodeID string `yaml:"node_id"`
	Field  string `yaml:"field"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "SlopeGuard Edge"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 500 * time.Millisecond
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
	if c.SourceID == "" {
		c.SourceID = "opcua"
	}
	for i := range c.Nodes {
		c.Nodes[i].Field = strings.ToLower(strings.TrimSpace(c.Nodes[i].Field))
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	seen := make(map[string]string, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.NodeID == "" {
			return errors.New("node_id is required")
		}
		if !knownFields[n.Field] {
			return fmt.Errorf("node %q: unknown field %q", n.NodeID, n.Field)
		}
		if prev, dup := seen[n.Field]; dup {
			return fmt.Errorf("field %q mapped by both %q and %q", n.Field, prev, n.NodeID)
		}
		seen[n.Field] = n.NodeID
	}
	return nil
}

// Collector subscribes to the configured nodes and emits a frame every time
// a publish notification updates at least one field, once every configured
// field has reported a value.
type Collector struct {
	cfg       Config
	logger    *slog.Logger
	client    *opcua.Client
	sub       *opcua.Subscription
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	handleMap map[uint32]NodeConfig
	assembler *frameAssembler
	mu        sync.Mutex
	started   bool
}

func NewCollector(cfg Config, logger *slog.Logger) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	fields := make([]string, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		fields = append(fields, n.Field)
	}
	return &Collector{
		cfg:       cfg,
		logger:    logger.With("component", "opcua", "endpoint", cfg.Endpoint),
		assembler: newFrameAssembler(cfg.SourceID, cfg.StartSeq, fields),
	}, nil
}

func (c *Collector) Start(out chan<- *domain.Frame) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("opcua collector already started")
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	clientOpts, err := c.buildClientOptions()
	if err != nil {
		cancel()
		return err
	}

	client, err := opcua.NewClient(c.cfg.Endpoint, clientOpts...)
	if err != nil {
		cancel()
		return fmt.Errorf("opcua new client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		cancel()
		return fmt.Errorf("opcua connect: %w", err)
	}

	notifyCh := make(chan *opcua.PublishNotificationData, len(c.cfg.Nodes)*4)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: c.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		cancel()
		_ = client.Close(ctx)
		return fmt.Errorf("opcua subscribe: %w", err)
	}

	handleMap := make(map[uint32]NodeConfig, len(c.cfg.Nodes))
	for i, node := range c.cfg.Nodes {
		nodeID, err := ua.ParseNodeID(node.NodeID)
		if err != nil {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("parse node id %q: %w", node.NodeID, err)
		}
		handle := uint32(i + 1)
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, handle)
		if c.cfg.SamplingInterval > 0 {
			req.RequestedParameters.SamplingInterval = float64(c.cfg.SamplingInterval / time.Millisecond)
		}
		res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
		if err != nil {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("monitor node %q: %w", node.NodeID, err)
		}
		if len(res.Results) == 0 {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("monitor node %q failed: empty result", node.NodeID)
		}
		if res.Results[0].StatusCode != ua.StatusOK {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("monitor node %q failed: %s", node.NodeID, res.Results[0].StatusCode)
		}
		handleMap[handle] = node
	}

	c.mu.Lock()
	c.client = client
	c.sub = sub
	c.cancel = cancel
	c.handleMap = handleMap
	c.started = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.consume(ctx, notifyCh, out)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	sub := c.sub
	client := c.client
	c.started = false
	c.cancel = nil
	c.sub = nil
	c.client = nil
	c.mu.Unlock()

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

	c.wg.Wait()
	return err
}

func (c *Collector) consume(ctx context.Context, ch <-chan *opcua.PublishNotificationData, out chan<- *domain.Frame) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-ch:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				c.logger.Warn("notification error", "error", notif.Error)
				continue
			}
			c.processNotification(ctx, notif.Value, out)
		}
	}
}

func (c *Collector) processNotification(ctx context.Context, val interface{}, out chan<- *domain.Frame) {
	data, ok := val.(*ua.DataChangeNotification)
	if !ok {
		return
	}

	var updated bool
	for _, item := range data.MonitoredItems {
		nodeCfg, ok := c.handleMap[item.ClientHandle]
		if !ok {
			continue
		}
		fv, ok := variantToFloat(item.Value.Value)
		if !ok {
			c.logger.Warn("skipping node with unsupported type", "node_id", nodeCfg.NodeID, "type", fmt.Sprintf("%T", item.Value.Value))
			continue
		}

		ts := item.Value.ServerTimestamp
		if ts.IsZero() {
			ts = item.Value.SourceTimestamp
		}
		if ts.IsZero() {
			ts = time.Now()
		}
		c.assembler.update(nodeCfg.Field, fv, ts)
		updated = true
	}
	if !updated {
		return
	}

	frame, ok := c.assembler.build()
	if !ok {
		return
	}
	select {
	case <-ctx.Done():
	case out <- frame:
	}
}

func (c *Collector) buildClientOptions() ([]opcua.Option, error) {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(c.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(c.cfg.SecurityPolicy)),
		opcua.ApplicationName(c.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}

	if c.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(c.cfg.Username, c.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	return opts, nil
}

func (c *Collector) cleanupOnError(ctx context.Context, cancel context.CancelFunc, sub *opcua.Subscription, client *opcua.Client) {
	cancel()
	if sub != nil {
		_ = sub.Cancel(ctx)
	}
	if client != nil {
		_ = client.Close(ctx)
	}
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

var _ ports.Collector = (*Collector)(nil)
