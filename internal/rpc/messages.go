package rpc

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// GoToRequest asks the host to move a view to Address.
//
//	message GoToRequest { string address = 1; string size = 2; }
type GoToRequest struct {
	Address string
	Size    string
}

// ResponseCode is the host's reply.
//
//	message ResponseCode { string Response = 1; }
type ResponseCode struct {
	Response string
}

type wireMessage interface {
	marshalWire() []byte
	unmarshalWire([]byte) error
}

func (m *GoToRequest) marshalWire() []byte {
	var b []byte
	b = appendString(b, 1, m.Address)
	b = appendString(b, 2, m.Size)
	return b
}

func (m *GoToRequest) unmarshalWire(b []byte) error {
	*m = GoToRequest{}
	return consumeFields(b, map[protowire.Number]*string{1: &m.Address, 2: &m.Size})
}

func (m *ResponseCode) marshalWire() []byte {
	return appendString(nil, 1, m.Response)
}

func (m *ResponseCode) unmarshalWire(b []byte) error {
	*m = ResponseCode{}
	return consumeFields(b, map[protowire.Number]*string{1: &m.Response})
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// consumeFields decodes string fields by number. Varint values for a known
// field are kept in decimal; unknown fields are skipped.
func consumeFields(b []byte, fields map[protowire.Number]*string) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("rpc: decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		dst, known := fields[num]
		switch {
		case known && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return fmt.Errorf("rpc: decode field %d: %w", num, protowire.ParseError(n))
			}
			*dst = v
			b = b[n:]
		case known && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("rpc: decode field %d: %w", num, protowire.ParseError(n))
			}
			*dst = strconv.FormatUint(v, 10)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("rpc: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}
