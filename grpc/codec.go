// Package abcigrpc serves and dials the ABCI surface over gRPC.
//
// Messages are the plain structs from abcistate/types, encoded with the
// cramberry codec through their struct tags. There is no generated code.
package abcigrpc

import (
	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/pkg/errors"
	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content subtype, sent as application/grpc+cramberry.
const codecName = "cramberry"

// CramberryCodec is the grpc encoding.Codec for ABCI messages.
type CramberryCodec struct{}

func (CramberryCodec) Marshal(v any) ([]byte, error) {
	data, err := cramberry.Marshal(v)
	return data, errors.Wrapf(err, "failed to encode %T", v)
}

func (CramberryCodec) Unmarshal(data []byte, v any) error {
	return errors.Wrapf(cramberry.Unmarshal(data, v), "failed to decode %T", v)
}

func (CramberryCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(CramberryCodec{})
}
