package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/twinsync/gateway/pkg/audit"
	"github.com/twinsync/gateway/pkg/config"
	"github.com/twinsync/gateway/pkg/egress"
	"github.com/twinsync/gateway/pkg/ingress"
	"github.com/twinsync/gateway/pkg/model"
	"github.com/twinsync/gateway/pkg/mqttfacade"
	"github.com/twinsync/gateway/pkg/plc"
	"github.com/twinsync/gateway/pkg/robot"
	"github.com/twinsync/gateway/pkg/roster"
	robottransport "github.com/twinsync/gateway/pkg/transport/robot"
	plctransport "github.com/twinsync/gateway/pkg/transport/plc"
	"github.com/twinsync/gateway/pkg/util"
)

const (
	robotDeviceType = "robot"
	plcDeviceType   = "plc"

	planSubFilter  = "twinsync/+/+/plan/+/+/+"
	hbSubFilter    = "twinsync/+/+/hb/+/+/+"
	leaveSubFilter = "twinsync/+/+/leave/+/+/+"
)

// Gateway owns one tenant/gateway's full device fleet plus the shared
// ingress/egress/roster machinery that wires them to the broker. It is
// the top-level object cmd/gatewayd constructs and runs.
type Gateway struct {
	cfg *config.GatewayConfig

	facade   *mqttfacade.Facade
	pump     *egress.Pump
	roster   *roster.Roster
	registry *Registry
	router   *ingress.Router

	robots map[model.DeviceKey]*robot.RobotSession
	plcs   map[model.DeviceKey]*plc.PlcSession

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Gateway from cfg. It constructs every configured device
// session and its transport, but does not connect to the broker or any
// device — call Run for that.
func New(cfg *config.GatewayConfig) *Gateway {
	facade := mqttfacade.New()
	gw := &Gateway{
		cfg:      cfg,
		facade:   facade,
		pump:     egress.NewPump(facade, cfg.PublishPeriodMs),
		roster:   roster.New(facade, cfg.TenantID, cfg.GatewayID),
		registry: NewRegistry(),
		robots:   make(map[model.DeviceKey]*robot.RobotSession),
		plcs:     make(map[model.DeviceKey]*plc.PlcSession),
	}
	gw.router = ingress.NewRouter(gw.registry.Resolve)

	for _, rc := range cfg.Robots {
		gw.addRobot(rc)
	}
	for _, pc := range cfg.Plcs {
		gw.addPlc(pc)
	}
	return gw
}

func (gw *Gateway) deviceKey(deviceType, name string) model.DeviceKey {
	return model.NewDeviceKey(gw.cfg.TenantID, gw.cfg.GatewayID, name, deviceType)
}

func (gw *Gateway) addRobot(rc config.RobotConfig) {
	key := gw.deviceKey(robotDeviceType, rc.Name)
	transport := robottransport.NewTCPTransport(rc.IP, rc.Port, time.Duration(rc.TimeoutMs)*time.Millisecond)
	rs := robot.NewRobotSession(key, transport)

	rs.OnStatusChanged = func(status model.DeviceStatus, err error) {
		gw.onStatusChanged(key, status, err)
	}
	rs.OnFrameReceived = func(f model.TelemetryFrame) {
		gw.pump.Enqueue(key, model.TelemetryFrameOf(f))
		_ = gw.roster.NoteFrame(key, f.Ts)
	}
	rs.OnPublishAllowedChanged = func(allowed bool) {
		gw.pump.SetPublishAllowed(key, allowed)
	}

	gw.robots[key] = rs
	gw.registry.Put(key, rs)
	_ = gw.roster.Register(key, rc.Name, "tcp")
}

func (gw *Gateway) addPlc(pc config.PlcConfig) {
	key := gw.deviceKey(plcDeviceType, pc.Name)
	transport := plctransport.NewTCPTransport(pc.IP, pc.Port, time.Duration(pc.TimeoutMs)*time.Millisecond, pc.UDTMembers, pc.MaxArrayElements)
	ps := plc.NewPlcSession(key, transport, time.Duration(pc.TimeoutMs)*time.Millisecond)

	ps.OnStatusChanged = func(status model.DeviceStatus, err error) {
		gw.onStatusChanged(key, status, err)
	}
	ps.OnFrameReceived = func(f model.PlcFrame) {
		gw.pump.Enqueue(key, model.PlcFrameOf(f))
		_ = gw.roster.NoteFrame(key, f.Ts)
	}
	ps.OnPublishAllowedChanged = func(allowed bool) {
		gw.pump.SetPublishAllowed(key, allowed)
	}

	gw.plcs[key] = ps
	gw.registry.Put(key, ps)
	_ = gw.roster.Register(key, pc.Name, "tcp")
}

func (gw *Gateway) onStatusChanged(key model.DeviceKey, status model.DeviceStatus, err error) {
	_ = gw.roster.SetStatus(key, status)

	evt := audit.NewEvent(key.String(), statusEventType(status))
	if err != nil {
		evt = evt.WithError(err)
	} else {
		evt = evt.WithSuccess()
	}
	_ = audit.Log(evt)

	if status == model.Faulted {
		util.WithDevice(key.String()).Warnf("device faulted: %v", err)
	}
}

func statusEventType(status model.DeviceStatus) audit.EventType {
	switch status {
	case model.Connected:
		return audit.EventTypeConnect
	case model.Disconnected:
		return audit.EventTypeDisconnect
	case model.Faulted:
		return audit.EventTypeFaulted
	default:
		return audit.EventTypeConnect
	}
}

// Run connects to the broker, subscribes to the three ingress topic
// families, starts the egress pump, and launches a supervised Run
// goroutine for every configured device session. It blocks until ctx is
// cancelled, then tears everything down in reverse order.
func (gw *Gateway) Run(ctx context.Context) error {
	b := gw.cfg.Broker
	if err := gw.facade.Connect(b.Host, b.Port, "", b.ClientCertPath, b.ClientKeyPath, b.CACertPath); err != nil {
		return fmt.Errorf("gateway: connecting to broker: %w", err)
	}

	gw.facade.AddHandler(gw.router.HandleMessage)
	for _, filter := range []string{planSubFilter, hbSubFilter, leaveSubFilter} {
		if err := gw.facade.Subscribe(filter, 1); err != nil {
			gw.facade.Disconnect()
			return fmt.Errorf("gateway: subscribing to %s: %w", filter, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	gw.cancel = cancel

	gw.pump.Start()

	for key, rs := range gw.robots {
		gw.wg.Add(1)
		go func(key model.DeviceKey, rs *robot.RobotSession) {
			defer gw.wg.Done()
			if err := rs.Run(runCtx); err != nil {
				util.WithDevice(key.String()).Errorf("robot session exited: %v", err)
			}
		}(key, rs)
	}
	for key, ps := range gw.plcs {
		gw.wg.Add(1)
		go func(key model.DeviceKey, ps *plc.PlcSession) {
			defer gw.wg.Done()
			if err := ps.Run(runCtx); err != nil {
				util.WithDevice(key.String()).Errorf("plc session exited: %v", err)
			}
		}(key, ps)
	}

	<-runCtx.Done()
	gw.wg.Wait()
	gw.pump.Stop()
	gw.facade.Disconnect()
	return nil
}

// Shutdown cancels the Run goroutine tree; it returns without waiting for
// Run to finish.
func (gw *Gateway) Shutdown() {
	if gw.cancel != nil {
		gw.cancel()
	}
}

// Roster exposes the gateway's roster publisher.
func (gw *Gateway) Roster() *roster.Roster { return gw.roster }
