package mqttbus

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher is what services depend on; tests swap in a fake.
type IPublisher interface {
	Publish(payload []byte) error
	Close()
}

// Publisher publishes payloads on a fixed topic at QoS 0. Readings are a
// stream; a dropped sample costs nothing.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

func (p *Publisher) Publish(payload []byte) error {
	token := p.client.Publish(p.topic, 0, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("mqttbus: publish to %s: %w", p.topic, token.Error())
	}
	return nil
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("mqttbus: publisher disconnected")
	}
}
