// Package env sets up a gateway from flags and environment variables.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robotalks/xbee.go/pkg/l0/comm"
	"github.com/robotalks/xbee.go/pkg/l0/serial"
	"github.com/robotalks/xbee.go/pkg/l1/comm/mqtt"
)

// Config provides common options to setup a gateway.
type Config struct {
	Serial serial.Config

	// IdleTimeout drops a partial frame when the radio goes quiet.
	IdleTimeout time.Duration

	// MQTTBrokerURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	GatewayID     string

	// MonitorAddr is the listen address of the websocket monitor.
	// Empty disables the monitor.
	MonitorAddr   string
	StatsInterval time.Duration
}

var defaultConfig = Config{
	Serial: serial.Config{
		Port:        "/dev/ttyUSB0",
		Baud:        serial.DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	},
	IdleTimeout:   time.Second,
	MQTTBrokerURL: "mqtt://localhost:1883/xbee/",
	StatsInterval: 5 * time.Second,
}

func init() {
	loadEnv(&defaultConfig, os.Getenv)
}

func loadEnv(conf *Config, getenv func(string) string) {
	if val := getenv("XBEE_PORT"); val != "" {
		conf.Serial.Port = val
	}
	if val := getenv("XBEE_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			conf.Serial.Baud = baud
		}
	}
	if val := getenv("XBEE_MQTT_URL"); val != "" {
		conf.MQTTBrokerURL = val
	}
	if val := getenv("XBEE_GATEWAY_ID"); val != "" {
		conf.GatewayID = val
	}
	if val := getenv("XBEE_MONITOR_ADDR"); val != "" {
		conf.MonitorAddr = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	SetupSerialFlags()
	flag.DurationVar(&defaultConfig.IdleTimeout, "idle-timeout", defaultConfig.IdleTimeout, "Drop partial frames after the radio is idle for this long")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.GatewayID, "id", defaultConfig.GatewayID, "Gateway ID, default is derived from machine ID")
	flag.StringVar(&defaultConfig.MonitorAddr, "monitor", defaultConfig.MonitorAddr, "Websocket monitor listen address, e.g. :8080")
	flag.DurationVar(&defaultConfig.StatsInterval, "stats-interval", defaultConfig.StatsInterval, "Interval of decoder stats published to monitor")
}

// SetupSerialFlags sets only the serial port flags.
func SetupSerialFlags() {
	flag.StringVar(&defaultConfig.Serial.Port, "port", defaultConfig.Serial.Port, "Serial port of the XBee module")
	flag.IntVar(&defaultConfig.Serial.Baud, "baud", defaultConfig.Serial.Baud, "Baud rate")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// ID returns GatewayID or the machine ID if not specified.
func (c *Config) ID() string {
	if c.GatewayID != "" {
		return c.GatewayID
	}
	return MachineID()
}

// OpenClient opens the serial port and wraps it with a Client.
func (c *Config) OpenClient() (*comm.Client, *serial.Port, error) {
	port, err := serial.Open(c.Serial)
	if err != nil {
		return nil, nil, err
	}
	conn := comm.NewConn(port)
	conn.IdleTimeout = c.IdleTimeout
	conn.ReadTimeout = port.HasReadTimeout()
	return comm.NewClient(conn), port, nil
}

// MustOpenClient opens the client and fails on error.
func (c *Config) MustOpenClient() (*comm.Client, *serial.Port) {
	client, port, err := c.OpenClient()
	if err != nil {
		log.Fatalln(err)
	}
	return client, port
}

// NewQueue creates the MQTT queue. The online marker of gatewayID is
// cleared by the broker if the gateway disconnects unexpectedly.
func (c *Config) NewQueue(gatewayID string) (*mqtt.Queue, error) {
	opts, topicPrefix, err := mqtt.ClientOptionsFromURL(c.MQTTBrokerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT broker URL: %w", err)
	}
	if gatewayID != "" {
		mqtt.SetWill(opts, topicPrefix, gatewayID)
	}
	return mqtt.NewQueue(opts, topicPrefix), nil
}
