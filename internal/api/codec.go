// Package api is the wire contract between the neurostore server and its
// clients: the gRPC service description, its messages and the JSON codec
// they travel with.
package api

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of the JSON codec
// ("application/grpc+json").
const CodecName = "json"

// jsonCodec encodes messages as JSON. Byte payloads become base64 strings.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
