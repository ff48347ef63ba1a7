package wire

import (
	"encoding/json"
	"fmt"
)

// Message names of the subscription protocol.
const (
	MessageSubscribe          = "subscribe"
	MessageUnsubscribe        = "unsubscribe"
	MessageSubscriptionResult = "subscription-result"
)

// Message is one frame of the subscription protocol. Query is set on
// subscribe, Response on subscription-result; both hold serialized nodes.
type Message struct {
	Name      string          `json:"name"`
	RequestID string          `json:"requestId"`
	Query     json.RawMessage `json:"query,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
}

// Subscribe builds a subscribe message for a serialized query.
func Subscribe(requestID string, query []byte) Message {
	return Message{Name: MessageSubscribe, RequestID: requestID, Query: query}
}

// Unsubscribe builds an unsubscribe message.
func Unsubscribe(requestID string) Message {
	return Message{Name: MessageUnsubscribe, RequestID: requestID}
}

// Result builds a subscription-result message for a serialized response.
func Result(requestID string, response []byte) Message {
	return Message{Name: MessageSubscriptionResult, RequestID: requestID, Response: response}
}

// Validate checks that the message carries the fields its name requires.
func (m Message) Validate() error {
	if m.RequestID == "" {
		return fmt.Errorf("%s message without requestId", m.Name)
	}
	switch m.Name {
	case MessageSubscribe:
		if len(m.Query) == 0 {
			return fmt.Errorf("subscribe message without query")
		}
	case MessageUnsubscribe:
	case MessageSubscriptionResult:
		if len(m.Response) == 0 {
			return fmt.Errorf("subscription-result message without response")
		}
	default:
		return fmt.Errorf("unknown message %q", m.Name)
	}
	return nil
}
