package hmr

import (
	"encoding/json"
	"fmt"
)

type MessageType string

const (
	MsgTypeUpdateStart MessageType = "update-start"
	MsgTypeUpdate      MessageType = "update"
	MsgTypeError       MessageType = "error"
	MsgTypeUpdateDone  MessageType = "update-done"
)

type Message struct {
	Type MessageType     `json:"type"`
	Body json.RawMessage `json:"body,omitempty"`
}

// ModuleUpdate is one (name, code) pair; it travels as a two element array.
type ModuleUpdate struct {
	Name string
	Code string
}

func (m ModuleUpdate) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{m.Name, m.Code})
}

func (m *ModuleUpdate) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("module update: %w", err)
	}
	m.Name, m.Code = pair[0], pair[1]
	return nil
}

type UpdateBody struct {
	Modules             []ModuleUpdate      `json:"modules"`
	InverseDependencies map[string][]string `json:"inverseDependencies"`
	SourceURLs          []string            `json:"sourceURLs"`
	SourceMappingURLs   []string            `json:"sourceMappingURLs"`
}

type ErrorBody struct {
	Type        ErrorKind `json:"type"`
	Description string    `json:"description"`
	Filename    string    `json:"filename,omitempty"`
	LineNumber  int       `json:"lineNumber,omitempty"`
}

func newMessage(t MessageType, body any) (Message, error) {
	if body == nil {
		return Message{Type: t}, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s body: %w", t, err)
	}
	return Message{Type: t, Body: raw}, nil
}

// DecodeBody unmarshals the message body into v.
func (m Message) DecodeBody(v any) error {
	if len(m.Body) == 0 {
		return fmt.Errorf("%s message has no body", m.Type)
	}
	return json.Unmarshal(m.Body, v)
}

func updateStartMessage() Message {
	return Message{Type: MsgTypeUpdateStart}
}

func updateDoneMessage() Message {
	return Message{Type: MsgTypeUpdateDone}
}
