// Package broker publishes account lifecycle events to a message broker.
package broker

import (
	"context"
	"errors"
	"strconv"
)

const (
	TopicUserCreated = "user_created"
	TopicUserDeleted = "user_deleted"
)

var ErrClosed = errors.New("publisher closed")

// Message is one keyed record on a topic. Value is JSON-encoded on the wire.
type Message struct {
	Key   string
	Value any
}

type Publisher interface {
	Emit(ctx context.Context, topic string, msg Message) error
}

// AccountEvent is the value carried by user_created and user_deleted.
type AccountEvent struct {
	ID       int64  `json:"id"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

func AccountMessage(id int64, role string, isActive bool) Message {
	return Message{
		Key: strconv.FormatInt(id, 10),
		Value: AccountEvent{
			ID:       id,
			Role:     role,
			IsActive: isActive,
		},
	}
}
