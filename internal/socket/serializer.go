package socket

import (
	"encoding/json"

	"github.com/ugorji/go/codec"
)

// Serializer converts payloads to and from the wire representation.
// JSON is the gateway default; msgpack is available for deployments that
// negotiate a binary framing.
type Serializer interface {
	Serialize(interface{}) ([]byte, error)
	Deserialize([]byte, interface{}) error
}

type JSONSerializer struct{}

func (s *JSONSerializer) Serialize(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (s *JSONSerializer) Deserialize(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

type MsgpackSerializer struct{}

func (s *MsgpackSerializer) Serialize(v interface{}) ([]byte, error) {
	var out []byte
	err := codec.NewEncoderBytes(&out, &codec.MsgpackHandle{}).Encode(v)
	return out, err
}

func (s *MsgpackSerializer) Deserialize(data []byte, v interface{}) error {
	return codec.NewDecoderBytes(data, &codec.MsgpackHandle{}).Decode(v)
}
