package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_mqtt_message_count",
		Help: "The number of received MQTT messages (per subscription).",
	}, []string{"subscription"})

	pc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_mqtt_publish_count",
		Help: "The number of published MQTT messages (per result).",
	}, []string{"result"})

	mqttc = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broker_mqtt_connect_count",
		Help: "The number of times the client connected to the MQTT broker.",
	})

	mqttd = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broker_mqtt_disconnect_count",
		Help: "The number of times the client lost the MQTT broker connection.",
	})
)

func messageCounter(sub string) prometheus.Counter {
	return mc.With(prometheus.Labels{"subscription": sub})
}

func publishCounter(result string) prometheus.Counter {
	return pc.With(prometheus.Labels{"result": result})
}

func connectCounter() prometheus.Counter {
	return mqttc
}

func disconnectCounter() prometheus.Counter {
	return mqttd
}
