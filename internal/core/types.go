package core

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Arguments хранит аргументы вызова без интерпретации значений.
type Arguments map[string]json.RawMessage

// CapabilityRequest описывает один входящий вызов capability.
type CapabilityRequest struct {
	Name      string
	Arguments Arguments
}

// Validate проверяет форму запроса; содержимое аргументов не проверяется.
func (r CapabilityRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewError(KindInvalidRequest, "capability name is required")
	}
	return nil
}

// CapabilityResult содержит ответ провайдера в неизменном виде.
type CapabilityResult struct {
	Payload json.RawMessage
}

// Capability описывает capability, объявленную рантаймом.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ParseArguments разбирает JSON-объект аргументов. Пустое значение и null дают пустой набор.
func ParseArguments(raw json.RawMessage) (Arguments, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Arguments{}, nil
	}
	if trimmed[0] != '{' {
		return nil, NewError(KindInvalidRequest, "arguments must be a JSON object")
	}
	args := Arguments{}
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, WrapError(KindInvalidRequest, "arguments must be a JSON object", err)
	}
	return args, nil
}
