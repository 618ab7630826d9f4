package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/golang/glog"

	fx "github.com/robotalks/xbee.go/pkg/framework"
	"github.com/robotalks/xbee.go/pkg/l0/comm"
	"github.com/robotalks/xbee.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/xbee.go/pkg/l1/comm/websocket"
	"github.com/robotalks/xbee.go/pkg/l1/env"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	conf := env.Default()
	gatewayID := conf.ID()

	client, port := conf.MustOpenClient()
	defer port.Close()

	q, err := conf.NewQueue(gatewayID)
	if err != nil {
		glog.Exit(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		glog.Exitf("connect MQTT broker: %v", token.Error())
	}
	defer q.Close()
	glog.Infof("gateway %s on %s", gatewayID, conf.Serial.Port)

	runner := fx.NewRunner().HandleSignals()
	runnables := []fx.Runnable{
		fx.NamedRun("radio", client),
		fx.NamedRun("mqtt", mqtt.NewBridge(q, client, gatewayID)),
	}
	if conf.MonitorAddr != "" {
		monitor := websocket.NewMonitor()
		monitor.Conn = client.Conn()
		monitor.StatsInterval = conf.StatsInterval
		client.Conn().Handler = comm.FrameHandlers{client, monitor}

		mux := http.NewServeMux()
		mux.Handle("/ws", monitor.Handler())
		server := &http.Server{Addr: conf.MonitorAddr, Handler: mux}
		runnables = append(runnables,
			fx.NamedRun("monitor", monitor),
			fx.NamedRun("http", fx.RunnableFunc(func(ctx context.Context) error {
				return fx.RunWithContextCloser(ctx, server, server.ListenAndServe)
			})))
	}
	if err := runner.Go(runnables...).Wait(); err != nil {
		glog.Exit(err)
	}
}
