// Package services defines the business logic for agents, channels, intents,
// conversations and the inbound message pipeline. This file centralizes
// service-level error values so that they can be returned consistently by
// service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrAgentNotFound indicates the agent does not exist in the caller's workspace.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrIntentNotFound indicates the intent does not exist for the agent.
	ErrIntentNotFound = errors.New("intent not found")

	// ErrChannelNotFound indicates no active channel matched the lookup.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrConversationNotFound indicates the conversation is unknown or belongs
	// to another workspace.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrInvalidTrigger is returned when a trigger has no usable pattern or a
	// pattern does not compile.
	ErrInvalidTrigger = errors.New("invalid trigger")

	// ErrInvalidIntent wraps field-level validation failures for intents.
	ErrInvalidIntent = errors.New("invalid intent")

	// ErrDuplicateIntent is returned when an agent already has an intent with
	// the same name (case-insensitive).
	ErrDuplicateIntent = errors.New("intent name already in use")

	// ErrInvalidChannel wraps validation failures for channel writes.
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrDuplicateChannel is returned when another channel already owns the
	// provider correlation key.
	ErrDuplicateChannel = errors.New("correlation key already bound to another channel")

	// ErrInvalidStatus is returned for unknown conversation statuses.
	ErrInvalidStatus = errors.New("invalid conversation status")

	// ErrInvalidAgent wraps validation failures for agent writes.
	ErrInvalidAgent = errors.New("invalid agent")

	// ErrEmptyMessage is returned when an inbound message has no content.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrDuplicateDelivery is returned when an inbound message was already
	// processed and no recorded reply exists yet.
	ErrDuplicateDelivery = errors.New("message already processed")
)
