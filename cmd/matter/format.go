package main

import (
	"encoding/hex"
	"fmt"

	"github.com/matter-labs/matterdb/pkg/serialization/codec"
)

type valueFormat string

const (
	formatHex    valueFormat = "hex"
	formatU64    valueFormat = "u64"
	formatString valueFormat = "string"
	formatCBOR   valueFormat = "cbor"
)

func parseFormat(s string) (valueFormat, error) {
	switch f := valueFormat(s); f {
	case formatHex, formatU64, formatString, formatCBOR:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want hex, u64, string or cbor)", s)
	}
}

// rawCodec decodes values according to the format and keeps them as any.
type rawCodec struct {
	format valueFormat
	cbor   codec.Codec[any]
}

func (f valueFormat) codec() codec.Codec[any] {
	c := rawCodec{format: f}
	if f == formatCBOR {
		c.cbor = codec.CBOR[any]()
	}
	return c
}

func (c rawCodec) Encode(v any) []byte {
	panic("matter: values are never written")
}

func (c rawCodec) Decode(data []byte) (any, error) {
	switch c.format {
	case formatU64:
		return codec.Uint64().Decode(data)
	case formatString:
		return codec.String().Decode(data)
	case formatCBOR:
		return c.cbor.Decode(data)
	default:
		return codec.Bytes().Decode(data)
	}
}

func (f valueFormat) render(v any) string {
	if b, ok := v.([]byte); ok {
		return hex.EncodeToString(b)
	}
	return fmt.Sprint(v)
}
