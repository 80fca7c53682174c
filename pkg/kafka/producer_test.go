package kafka

import (
	"testing"

	"github.com/anatoly-dev/go-ws-matchmaker/pkg/config"
)

func TestProducerConfig(t *testing.T) {
	cm := producerConfig(&config.KafkaConfig{BootstrapServers: "broker:9092", Topic: "sessions"})

	tests := map[string]interface{}{
		"bootstrap.servers": "broker:9092",
		"client.id":         "ws-matchmaker",
		"acks":              "1",
	}
	for key, want := range tests {
		got, err := cm.Get(key, nil)
		if err != nil {
			t.Fatalf("Get(%q): %v", key, err)
		}
		if got != want {
			t.Errorf("%s = %v, want %v", key, got, want)
		}
	}

	cm = producerConfig(&config.KafkaConfig{ClientID: "edge-1"})
	if got, _ := cm.Get("client.id", nil); got != "edge-1" {
		t.Errorf("client.id = %v", got)
	}
}
