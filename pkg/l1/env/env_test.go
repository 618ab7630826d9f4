package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	vars := map[string]string{
		"XBEE_PORT":         "/dev/ttyAMA0",
		"XBEE_BAUD":         "9600",
		"XBEE_MQTT_URL":     "mqtt://broker:1883/radio/",
		"XBEE_GATEWAY_ID":   "gw1",
		"XBEE_MONITOR_ADDR": ":8080",
	}
	conf := NewConfig()
	loadEnv(conf, func(key string) string { return vars[key] })
	require.Equal(t, "/dev/ttyAMA0", conf.Serial.Port)
	require.Equal(t, 9600, conf.Serial.Baud)
	require.Equal(t, "mqtt://broker:1883/radio/", conf.MQTTBrokerURL)
	require.Equal(t, "gw1", conf.ID())
	require.Equal(t, ":8080", conf.MonitorAddr)

	vars = map[string]string{"XBEE_BAUD": "fast"}
	conf = NewConfig()
	baud := conf.Serial.Baud
	loadEnv(conf, func(key string) string { return vars[key] })
	require.Equal(t, baud, conf.Serial.Baud)
}

func TestNewConfig(t *testing.T) {
	conf := NewConfig()
	conf.IdleTimeout = time.Minute
	require.NotEqual(t, time.Minute, Default().IdleTimeout)
}

func TestNewQueue(t *testing.T) {
	conf := NewConfig()
	conf.MQTTBrokerURL = "mqtt://localhost:1883/xbee/"
	q, err := conf.NewQueue("gw1")
	require.NoError(t, err)
	require.Equal(t, "xbee/", q.TopicPrefix)

	conf.MQTTBrokerURL = "://bad"
	_, err = conf.NewQueue("gw1")
	require.Error(t, err)
}
