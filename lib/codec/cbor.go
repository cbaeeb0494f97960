// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Rows decoded without a target struct become map[string]any,
		// which is what the datastore column mapper and encoding/json
		// both expect.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Fields converts a struct (json or cbor tagged) or map into the
// generic field map used for column binding. A nil value yields an
// empty map.
func Fields(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	if fields, ok := v.(map[string]any); ok {
		clone := make(map[string]any, len(fields))
		for key, value := range fields {
			clone[key] = value
		}
		return clone, nil
	}
	data, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encoding %T: %w", v, err)
	}
	var fields map[string]any
	if err := Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("codec: %T is not a field map: %w", v, err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// Encoder is a CBOR stream encoder.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder.
type Decoder = cbor.Decoder

// RawMessage is one encoded CBOR item, used for row payloads whose
// concrete type the producer does not know.
type RawMessage = cbor.RawMessage

// NewEncoder returns a deterministic CBOR encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Diagnose returns the RFC 8949 diagnostic notation for data. The CLI
// uses it to print raw feed payloads in debug output.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
