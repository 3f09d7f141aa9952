package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Event
	}{
		{"item agent message", `{"type":"item.completed","item":{"id":"i1","type":"agent_message","text":"hello"}}`, AgentMessage{Text: "hello"}},
		{"item_type field", `{"type":"item.completed","item":{"item_type":"assistant_message","text":"hi"}}`, AgentMessage{Text: "hi"}},
		{"item error", `{"type":"item.completed","item":{"type":"error","message":"bad"}}`, ErrorEvent{Message: "bad"}},
		{"other item", `{"type":"item.completed","item":{"type":"reasoning","text":"thinking"}}`, Unrecognized{Type: "item.completed"}},
		{"legacy agent message", `{"id":"0","msg":{"type":"agent_message","message":"old"}}`, AgentMessage{Text: "old"}},
		{"legacy error", `{"id":"0","msg":{"type":"error","message":"quota"}}`, ErrorEvent{Message: "quota"}},
		{"legacy other", `{"id":"0","msg":{"type":"task_started"}}`, Unrecognized{Type: "task_started"}},
		{"top level error", `{"type":"error","message":"stream closed"}`, ErrorEvent{Message: "stream closed"}},
		{"turn failed", `{"type":"turn.failed","error":{"message":"usage limit"}}`, ErrorEvent{Message: "usage limit"}},
		{"thread started", `{"type":"thread.started","thread_id":"t"}`, Unrecognized{Type: "thread.started"}},
		{"not json", `Reading prompt from stdin...`, Unrecognized{Malformed: true}},
		{"truncated json", `{"type":"item.completed","item":{`, Unrecognized{Malformed: true}},
		{"array", `[1,2]`, Unrecognized{Malformed: true}},
		{"blank", `   `, Unrecognized{Malformed: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeEvent([]byte(tt.line)))
		})
	}
}
