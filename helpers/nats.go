package helpers

import (
	"encoding/json"
	"log"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/pictura/pictura/model"
)

// PostsSubject carries post lifecycle messages between the
// post service and the view registries
const PostsSubject = "pictura.posts"

var Nats *nats.Conn

// InitNATS starts a new NATS instance
func InitNATS() {
	connection, err := nats.Connect(os.Getenv("NATS_URL"))

	if err != nil {
		log.Printf("Cannot connect to %v: %v", os.Getenv("NATS_URL"), err)
	}

	Nats = connection
}

// Publish allows publishing message on NATS
func Publish(subject string, message model.Message) {
	if Nats == nil {
		return
	}

	encoded, err := json.Marshal(message)
	if err != nil {
		log.Printf("(Publish) Failed to encode message for %v: %v", subject, err)
		return
	}

	if err := Nats.Publish(subject, encoded); err != nil {
		log.Printf("(Publish) Failed to send message to %v, got error: %v", subject, err)
	}
}

// Subscribe invokes the handler for every message on the
// subject
func Subscribe(subject string, handler func(model.Message)) {
	if Nats == nil {
		return
	}

	_, err := Nats.Subscribe(subject, func(msg *nats.Msg) {
		var message model.Message
		if err := json.Unmarshal(msg.Data, &message); err != nil {
			log.Printf("(Subscribe) Bad message on %v: %v", subject, err)
			return
		}
		handler(message)
	})
	if err != nil {
		log.Printf("(Subscribe) Failed to subscribe to %v: %v", subject, err)
	}
}
