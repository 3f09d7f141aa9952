package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUnsupportedTool     = errors.New("unsupported tool")
	ErrUnknownConversation = errors.New("unknown conversation")
	ErrNoClientForTool     = errors.New("no client for tool")
	ErrCLITimeout          = errors.New("cli timeout")
	ErrCLINonZeroExit      = errors.New("cli exited with non-zero status")
)

// InvalidRequestError reports malformed or incomplete input.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string { return e.Reason }

func (e *InvalidRequestError) Unwrap() error { return ErrInvalidRequest }

// UnsupportedToolError reports an unknown backend identifier.
type UnsupportedToolError struct {
	Tool string
}

func (e *UnsupportedToolError) Error() string {
	return fmt.Sprintf("Unsupported tool: %s", e.Tool)
}

func (e *UnsupportedToolError) Unwrap() error { return ErrUnsupportedTool }

// UnknownConversationError reports a store operation on a missing id.
type UnknownConversationError struct {
	ID string
}

func (e *UnknownConversationError) Error() string {
	return fmt.Sprintf("Unknown conversation: %s", e.ID)
}

func (e *UnknownConversationError) Unwrap() error { return ErrUnknownConversation }
