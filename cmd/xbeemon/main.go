package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/xbee.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/xbee.go/pkg/l1/msgs"
	"github.com/robotalks/xbee.go/pkg/nerve"
)

var (
	mqttURL   = "mqtt://localhost:1883/xbee/"
	gatewayID = "+"
)

func init() {
	if val := os.Getenv("XBEE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&gatewayID, "id", gatewayID, "Gateway ID to monitor, + for all.")
}

func messageFor(topic string) proto.Message {
	switch {
	case strings.HasSuffix(topic, "/status"):
		return &msgs.TxStatus{}
	case strings.HasSuffix(topic, "/tx"):
		return &msgs.TxRequest{}
	case strings.Contains(topic, "/rx/"):
		return &msgs.RxPacket{}
	}
	return nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub(gatewayID+"/#", mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/online") {
			log.Printf("%s: %q", topic, string(payload))
			return
		}
		msg := messageFor(topic)
		if msg == nil {
			log.Printf("%s: %d bytes", topic, len(payload))
			return
		}
		if err := msgs.Decode(payload, msg); err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, msg.String())
		if pkt, ok := msg.(*msgs.RxPacket); ok {
			if reading := nerve.ParseReading(string(pkt.Data)); !reading.Empty() {
				out, _ := json.Marshal(reading)
				log.Printf("%s: reading %s", topic, out)
			}
		}
	}))
	<-(chan struct{})(nil)
}
