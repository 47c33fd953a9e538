// Package mqttfacade wraps the eclipse/paho MQTT client described in §4.6:
// one shared TLS1.2 client-certificate connection, a sequential handler
// fan-out for inbound messages, and thin connect/subscribe/publish calls.
// It is the only place in the gateway that imports the MQTT library
// directly — everything above it (router, pump, roster) talks to this
// narrow facade.
package mqttfacade

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/lithammer/shortuuid"

	"github.com/twinsync/gateway/pkg/util"
)

// MessageHandler is invoked for every inbound message on any subscribed
// topic. Handlers run sequentially, in publish order, per §4.4/§5; a
// handler must not block indefinitely.
type MessageHandler func(topic string, payload []byte)

// Facade is the gateway's single MQTT connection. It is safe for
// concurrent use: Publish/Subscribe/IsConnected may be called from any
// session or the egress pump.
type Facade struct {
	mu       sync.RWMutex
	client   mqtt.Client
	handlers []MessageHandler
}

// New constructs an unconnected Facade.
func New() *Facade {
	return &Facade{}
}

// Connect dials host:port over TLS 1.2 using the given client certificate
// and key for mutual authentication. clientID is used verbatim if
// non-empty; otherwise a random short client ID is generated, grounding
// on the pack's mqtt session helper.
func (f *Facade) Connect(host string, port int, clientID, clientCertPath, clientKeyPath, caCertPath string) error {
	cert, err := tls.LoadX509KeyPair(clientCertPath, clientKeyPath)
	if err != nil {
		return fmt.Errorf("mqttfacade: loading client certificate: %w", err)
	}

	tlsCfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}

	if caCertPath != "" {
		pem, err := os.ReadFile(caCertPath)
		if err != nil {
			return fmt.Errorf("mqttfacade: reading CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return fmt.Errorf("mqttfacade: no certificates parsed from %s", caCertPath)
		}
		tlsCfg.RootCAs = pool
	}

	if clientID == "" {
		clientID = "twinsync-" + shortuuid.New()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("ssl://%s:%d", host, port))
	opts.SetClientID(clientID)
	opts.SetTLSConfig(tlsCfg)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		util.Warnf("mqttfacade: connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		util.Info("mqttfacade: connected to broker")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqttfacade: connecting: %w", token.Error())
	}

	client.AddRoute("#", f.dispatch)

	f.mu.Lock()
	f.client = client
	f.mu.Unlock()
	return nil
}

// Disconnect gracefully tears the connection down.
func (f *Facade) Disconnect() {
	f.mu.Lock()
	client := f.client
	f.mu.Unlock()
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}

// IsConnected reports whether the underlying client believes it's connected.
func (f *Facade) IsConnected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.client != nil && f.client.IsConnected()
}

// Subscribe registers filter at qos. Inbound messages are delivered to
// every handler added via AddHandler.
func (f *Facade) Subscribe(filter string, qos byte) error {
	f.mu.RLock()
	client := f.client
	f.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("mqttfacade: subscribe before connect")
	}
	if token := client.Subscribe(filter, qos, nil); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqttfacade: subscribing to %s: %w", filter, token.Error())
	}
	return nil
}

// Publish sends payload on topic at qos, with the given retain flag.
func (f *Facade) Publish(topic string, qos byte, retain bool, payload []byte) error {
	f.mu.RLock()
	client := f.client
	f.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("mqttfacade: publish before connect")
	}
	token := client.Publish(topic, qos, retain, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqttfacade: publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// AddHandler appends fn to the handler list. The underlying client's
// message callback is wired exactly once, at Connect time; AddHandler
// itself just extends the fan-out list that dispatch reads from.
func (f *Facade) AddHandler(fn MessageHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, fn)
}

// dispatch is the library's onMessage callback, wired once at Connect.
func (f *Facade) dispatch(_ mqtt.Client, msg mqtt.Message) {
	f.dispatchMessage(msg.Topic(), msg.Payload())
}

// dispatchMessage snapshots the handler list and runs each sequentially,
// in publish order, on (topic, payload). A handler that panics is
// recovered and logged so one bad handler can't break the chain, per §4.6.
func (f *Facade) dispatchMessage(topic string, payload []byte) {
	f.mu.RLock()
	handlers := make([]MessageHandler, len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					util.Errorf("mqttfacade: handler panic on %s: %v", topic, r)
				}
			}()
			h(topic, payload)
		}()
	}
}
