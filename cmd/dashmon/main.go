package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/duetlab/dash.go/pkg/telemetry"
)

var (
	mqttURL = "mqtt://localhost:1883/"
)

func init() {
	if val := os.Getenv("DASH_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := telemetry.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub("#", func(topic string, payload []byte) {
		switch {
		case strings.HasSuffix(topic, "/meta"), strings.HasSuffix(topic, "/status"):
			log.Printf("%s: %s", topic, string(payload))
		case strings.HasSuffix(topic, "/m4"), strings.HasSuffix(topic, "/cmd"):
			log.Printf("%s: %q", topic, string(payload))
		default:
			log.Printf("%s: %d bytes", topic, len(payload))
		}
	})
	token := q.Connect()
	token.Wait()
	if err = token.Error(); err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}
