package job

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Invocation describes what to run: a handler name split into type and
// method, and the serialized arguments. Each argument is a JSON document.
type Invocation struct {
	Type           string   `json:"type" msgpack:"type"`
	Method         string   `json:"method" msgpack:"method"`
	ParameterTypes []string `json:"parameter_types,omitempty" msgpack:"parameter_types,omitempty"`
	Args           []string `json:"args,omitempty" msgpack:"args,omitempty"`
}

// Name is the registry key of the invocation.
func (inv *Invocation) Name() string {
	if inv.Type == "" {
		return inv.Method
	}
	return inv.Type + "." + inv.Method
}

// ArgumentsJSON renders Args as a JSON array.
func (inv *Invocation) ArgumentsJSON() (string, error) {
	args := inv.Args
	if args == nil {
		args = []string{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}
	return string(b), nil
}

// Codec defines the serialization contract for invocation payloads.
type Codec interface {
	// Encode serializes an invocation to bytes.
	Encode(inv *Invocation) ([]byte, error)

	// Decode deserializes bytes into an invocation.
	Decode(data []byte) (*Invocation, error)

	// Name returns the codec identifier stored alongside the payload.
	Name() string
}

// Codec names.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to JSON.
func GetCodec(name string) Codec {
	switch name {
	case CodecNameMsgpack:
		return &MsgpackCodec{}
	default:
		return &JSONCodec{}
	}
}

// JSONCodec encodes invocations as JSON.
type JSONCodec struct{}

func (c *JSONCodec) Encode(inv *Invocation) ([]byte, error) {
	return json.Marshal(inv)
}

func (c *JSONCodec) Decode(data []byte) (*Invocation, error) {
	var inv Invocation
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (c *JSONCodec) Name() string { return CodecNameJSON }

// MsgpackCodec encodes invocations as MessagePack.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(inv *Invocation) ([]byte, error) {
	return msgpack.Marshal(inv)
}

func (c *MsgpackCodec) Decode(data []byte) (*Invocation, error) {
	var inv Invocation
	if err := msgpack.Unmarshal(data, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (c *MsgpackCodec) Name() string { return CodecNameMsgpack }

// Encode fills the payload fields of j from inv using codec.
func Encode(j *Job, inv *Invocation, codec Codec) error {
	if codec == nil {
		codec = &JSONCodec{}
	}
	data, err := codec.Encode(inv)
	if err != nil {
		return fmt.Errorf("encode invocation: %w", err)
	}
	args, err := inv.ArgumentsJSON()
	if err != nil {
		return err
	}
	j.InvocationData = data
	j.Encoding = codec.Name()
	j.Arguments = args
	return nil
}
