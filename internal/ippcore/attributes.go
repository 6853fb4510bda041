package ippcore

import (
	"bytes"
	"encoding/binary"
)

// Attributes is an ordered, named attribute-value container. A name maps
// to one or more values, mirroring IPP's 1setOf semantics; the zero value
// is ready to use.
type Attributes struct {
	order  []string
	values map[string][]interface{}
}

// NewAttributes returns an empty attribute container.
func NewAttributes() *Attributes {
	return &Attributes{values: make(map[string][]interface{})}
}

// Set replaces all values for name with a single value.
func (a *Attributes) Set(name string, value interface{}) {
	if _, ok := a.values[name]; !ok {
		a.order = append(a.order, name)
	}
	a.values[name] = []interface{}{value}
}

// Add appends an additional value under name (1setOf).
func (a *Attributes) Add(name string, value interface{}) {
	if _, ok := a.values[name]; !ok {
		a.order = append(a.order, name)
	}
	a.values[name] = append(a.values[name], value)
}

// Get returns the first value for name, if any.
func (a *Attributes) Get(name string) (interface{}, bool) {
	vs, ok := a.values[name]
	if !ok || len(vs) == 0 {
		return nil, false
	}
	return vs[0], true
}

// GetString returns the first string value for name, or "".
func (a *Attributes) GetString(name string) string {
	v, ok := a.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetInt returns the first integer value for name, or 0.
func (a *Attributes) GetInt(name string) int {
	v, ok := a.Get(name)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	}
	return 0
}

// GetBool returns the first boolean value for name, or false.
func (a *Attributes) GetBool(name string) bool {
	v, ok := a.Get(name)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// All returns the values for name in insertion order.
func (a *Attributes) All(name string) []interface{} {
	return a.values[name]
}

// Names returns attribute names in the order they were first set.
func (a *Attributes) Names() []string {
	return append([]string(nil), a.order...)
}

// WriteGroup serializes the group's begin-tag followed by each attribute
// in insertion order. Multi-valued attributes encode the first value with
// its name and subsequent values with an empty name, per RFC 8010 §3.1.1.
func WriteGroup(buf *bytes.Buffer, groupTag byte, a *Attributes) {
	buf.WriteByte(groupTag)
	for _, name := range a.Names() {
		for i, v := range a.values[name] {
			n := name
			if i > 0 {
				n = ""
			}
			writeAttribute(buf, tagForValue(v), n, v)
		}
	}
}

func tagForValue(v interface{}) byte {
	switch v.(type) {
	case string:
		return TagKeyword
	case int, int32:
		return TagInteger
	case bool:
		return TagBoolean
	default:
		return TagKeyword
	}
}

func writeAttribute(buf *bytes.Buffer, tag byte, name string, value interface{}) {
	buf.WriteByte(tag)
	_ = binary.Write(buf, binary.BigEndian, uint16(len(name)))
	buf.WriteString(name)

	switch v := value.(type) {
	case string:
		_ = binary.Write(buf, binary.BigEndian, uint16(len(v)))
		buf.WriteString(v)
	case int:
		_ = binary.Write(buf, binary.BigEndian, uint16(4))
		_ = binary.Write(buf, binary.BigEndian, int32(v))
	case int32:
		_ = binary.Write(buf, binary.BigEndian, uint16(4))
		_ = binary.Write(buf, binary.BigEndian, v)
	case bool:
		_ = binary.Write(buf, binary.BigEndian, uint16(1))
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}
}
