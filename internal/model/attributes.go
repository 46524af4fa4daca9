// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// AttributeMap maps attribute keys to optional tagged values. A nil value is
// a present key with a null value, which is distinct from a missing key.
// Serialization order is lexicographic.
type AttributeMap map[string]*AttributeValue

// AttributeType discriminates the variants of AttributeValue.
type AttributeType string

const (
	AttributeTypeString AttributeType = "string"
	AttributeTypeBool   AttributeType = "bool"
	AttributeTypeInt    AttributeType = "int"
	AttributeTypeDouble AttributeType = "double"
	AttributeTypeBytes  AttributeType = "bytes"
	AttributeTypeArray  AttributeType = "array"
	AttributeTypeKvList AttributeType = "kvlist"
)

// AttributeValue is a tagged union over the OTLP AnyValue variants. On the
// wire it is encoded as a {"type": ..., "value": ...} object; the decoder
// also accepts the legacy flat form where the value appears as a bare JSON
// scalar, array, or object.
type AttributeValue struct {
	Type   AttributeType
	Str    string
	Bool   bool
	Int    int64
	Double float64
	Bytes  []byte
	Array  []*AttributeValue
	KvList AttributeMap
}

func StringAttribute(s string) *AttributeValue {
	return &AttributeValue{Type: AttributeTypeString, Str: s}
}

func BoolAttribute(b bool) *AttributeValue {
	return &AttributeValue{Type: AttributeTypeBool, Bool: b}
}

func IntAttribute(i int64) *AttributeValue {
	return &AttributeValue{Type: AttributeTypeInt, Int: i}
}

func DoubleAttribute(f float64) *AttributeValue {
	return &AttributeValue{Type: AttributeTypeDouble, Double: f}
}

func BytesAttribute(b []byte) *AttributeValue {
	return &AttributeValue{Type: AttributeTypeBytes, Bytes: b}
}

func ArrayAttribute(values ...*AttributeValue) *AttributeValue {
	return &AttributeValue{Type: AttributeTypeArray, Array: values}
}

func KvListAttribute(m AttributeMap) *AttributeValue {
	return &AttributeValue{Type: AttributeTypeKvList, KvList: m}
}

type taggedValue struct {
	Type  AttributeType   `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v AttributeValue) MarshalJSON() ([]byte, error) {
	var inner any
	switch v.Type {
	case AttributeTypeString:
		inner = v.Str
	case AttributeTypeBool:
		inner = v.Bool
	case AttributeTypeInt:
		inner = v.Int
	case AttributeTypeDouble:
		inner = v.Double
	case AttributeTypeBytes:
		inner = v.Bytes
	case AttributeTypeArray:
		// Guarantee [] over null for empty arrays.
		if v.Array == nil {
			inner = []*AttributeValue{}
		} else {
			inner = v.Array
		}
	case AttributeTypeKvList:
		if v.KvList == nil {
			inner = AttributeMap{}
		} else {
			inner = v.KvList
		}
	default:
		return nil, fmt.Errorf("unknown attribute type %q", v.Type)
	}
	raw, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taggedValue{Type: v.Type, Value: raw})
}

func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty attribute value")
	}
	if data[0] == '{' {
		var tagged taggedValue
		if err := json.Unmarshal(data, &tagged); err == nil && knownAttributeType(tagged.Type) && tagged.Value != nil {
			return v.unmarshalTagged(tagged)
		}
		// Legacy flat form: a bare object is a kvlist.
		var m AttributeMap
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*v = AttributeValue{Type: AttributeTypeKvList, KvList: m}
		return nil
	}
	return v.unmarshalFlat(data)
}

func (v *AttributeValue) unmarshalTagged(tagged taggedValue) error {
	out := AttributeValue{Type: tagged.Type}
	var err error
	switch tagged.Type {
	case AttributeTypeString:
		err = json.Unmarshal(tagged.Value, &out.Str)
	case AttributeTypeBool:
		err = json.Unmarshal(tagged.Value, &out.Bool)
	case AttributeTypeInt:
		err = json.Unmarshal(tagged.Value, &out.Int)
	case AttributeTypeDouble:
		err = json.Unmarshal(tagged.Value, &out.Double)
	case AttributeTypeBytes:
		err = json.Unmarshal(tagged.Value, &out.Bytes)
	case AttributeTypeArray:
		err = json.Unmarshal(tagged.Value, &out.Array)
	case AttributeTypeKvList:
		err = json.Unmarshal(tagged.Value, &out.KvList)
	}
	if err != nil {
		return fmt.Errorf("malformed %s attribute: %w", tagged.Type, err)
	}
	*v = out
	return nil
}

// unmarshalFlat infers the variant from the JSON type. Integral numbers
// decode as Int, all other numbers as Double.
func (v *AttributeValue) unmarshalFlat(data []byte) error {
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = AttributeValue{Type: AttributeTypeString, Str: s}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = AttributeValue{Type: AttributeTypeBool, Bool: b}
	case '[':
		var arr []*AttributeValue
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		*v = AttributeValue{Type: AttributeTypeArray, Array: arr}
	default:
		if i, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			*v = AttributeValue{Type: AttributeTypeInt, Int: i}
			return nil
		}
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("malformed attribute value %s", data)
		}
		*v = AttributeValue{Type: AttributeTypeDouble, Double: f}
	}
	return nil
}

func knownAttributeType(t AttributeType) bool {
	switch t {
	case AttributeTypeString, AttributeTypeBool, AttributeTypeInt,
		AttributeTypeDouble, AttributeTypeBytes, AttributeTypeArray,
		AttributeTypeKvList:
		return true
	}
	return false
}
