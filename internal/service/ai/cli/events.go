package cli

import (
	"bytes"

	"github.com/tidwall/gjson"
)

// Event is one decoded record of a newline-delimited JSON stream.
// It is one of AgentMessage, ErrorEvent or Unrecognized.
type Event interface {
	isEvent()
}

// AgentMessage is a completed assistant message.
type AgentMessage struct {
	Text string
}

// ErrorEvent is an error reported by the CLI inside the stream.
type ErrorEvent struct {
	Message string
}

// Unrecognized is any other record. Malformed is set when the line was not JSON.
type Unrecognized struct {
	Type      string
	Malformed bool
}

func (AgentMessage) isEvent() {}
func (ErrorEvent) isEvent()   {}
func (Unrecognized) isEvent() {}

// DecodeEvent decodes a single stream line. It never fails: lines that are
// not JSON objects come back as Unrecognized{Malformed: true}.
//
// Two record shapes are understood:
//
//	{"type":"item.completed","item":{"type":"agent_message","text":"..."}}
//	{"id":"0","msg":{"type":"agent_message","message":"..."}}
//
// together with their error counterparts ("error", "turn.failed").
func DecodeEvent(line []byte) Event {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' || !gjson.ValidBytes(line) {
		return Unrecognized{Malformed: true}
	}
	root := gjson.ParseBytes(line)

	if msg := root.Get("msg"); msg.IsObject() {
		typ := msg.Get("type").String()
		switch typ {
		case "agent_message":
			return AgentMessage{Text: msg.Get("message").String()}
		case "error", "stream_error":
			return ErrorEvent{Message: msg.Get("message").String()}
		}
		return Unrecognized{Type: typ}
	}

	typ := root.Get("type").String()
	switch typ {
	case "item.completed":
		item := root.Get("item")
		itemType := item.Get("type").String()
		if itemType == "" {
			itemType = item.Get("item_type").String()
		}
		switch itemType {
		case "agent_message", "assistant_message":
			return AgentMessage{Text: item.Get("text").String()}
		case "error":
			return ErrorEvent{Message: item.Get("message").String()}
		}
	case "error":
		return ErrorEvent{Message: root.Get("message").String()}
	case "turn.failed":
		return ErrorEvent{Message: root.Get("error.message").String()}
	}
	return Unrecognized{Type: typ}
}
