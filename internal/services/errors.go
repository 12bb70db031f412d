// Package services defines the business logic for conversation processing,
// chatbot analytics, and lead capture. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Conversation-related errors.
var (
	// ErrChatbotNotFound indicates that the requested chatbot does not exist.
	ErrChatbotNotFound = errors.New("chatbot not found")

	// ErrChatbotInactive is returned when a message targets a chatbot whose
	// owner has deactivated it.
	ErrChatbotInactive = errors.New("chatbot is inactive")

	// ErrEmptyMessage is returned when an ingest request contains neither
	// message text nor a button click.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when an ingest request exceeds the maximum
	// configured message length limit.
	ErrTooLong = errors.New("message too long")

	// ErrQuotaExceeded is returned when the owner's monthly message quota
	// has been exhausted.
	ErrQuotaExceeded = errors.New("monthly message quota exceeded")

	// ErrConversationNotFound indicates that the requested conversation does
	// not exist or does not belong to the given chatbot/session.
	ErrConversationNotFound = errors.New("conversation not found")
)
