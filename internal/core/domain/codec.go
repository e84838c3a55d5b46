package domain

import (
	"bytes"
	"encoding/json"
	"iter"
	"math"
	"slices"
	"strconv"

	"go.trai.ch/zerr"
)

// wireValue is the tagged canonical form of a Value.
type wireValue struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

type wireHandle struct {
	Name     string `json:"name"`
	Stage    string `json:"stage,omitempty"`
	ObjectID string `json:"object,omitempty"`
	Query    string `json:"query,omitempty"`
}

// MarshalValue encodes v in its canonical form.
// Mapping keys are emitted in sorted order and in-process payloads are never encoded,
// so two trees describing the same stored data always encode to the same bytes.
// Text that is not valid UTF-8 is rejected with ErrNotMaterializable.
func MarshalValue(v Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalValue decodes bytes produced by MarshalValue.
func UnmarshalValue(data []byte) (Value, error) {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, zerr.Wrap(err, ErrInvalidValueEncoding.Error())
	}
	return fromWire(w)
}

// Equal reports whether a and b have the same canonical encoding.
func Equal(a, b Value) bool {
	ea, err := MarshalValue(a)
	if err != nil {
		return false
	}
	eb, err := MarshalValue(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

// Walk returns an iterator over every node of v in depth-first order, v included.
func Walk(v Value) iter.Seq[Value] {
	return func(yield func(Value) bool) {
		walk(v, yield)
	}
}

func walk(v Value, yield func(Value) bool) bool {
	if !yield(v) {
		return false
	}
	switch val := v.(type) {
	case Sequence:
		for _, item := range val {
			if !walk(item, yield) {
				return false
			}
		}
	case Mapping:
		for _, k := range sortedKeys(val) {
			if !walk(val[k], yield) {
				return false
			}
		}
	}
	return true
}

func sortedKeys(m Mapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func toWire(v Value) (wireValue, error) {
	var (
		payload any
		err     error
	)
	switch val := v.(type) {
	case Null:
		return wireValue{T: KindNull.String()}, nil
	case Bool:
		payload = bool(val)
	case Int:
		payload = int64(val)
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return wireValue{}, zerr.With(ErrNotMaterializable, "float", strconv.FormatFloat(f, 'g', -1, 64))
		}
		payload = f
	case String:
		if err := checkText(string(val)); err != nil {
			return wireValue{}, err
		}
		payload = string(val)
	case Sequence:
		items := make([]wireValue, len(val))
		for i, item := range val {
			if items[i], err = toWire(item); err != nil {
				return wireValue{}, zerr.With(err, "index", i)
			}
		}
		payload = items
	case Mapping:
		// encoding/json sorts map keys.
		items := make(map[string]wireValue, len(val))
		for k, item := range val {
			if err := checkText(k); err != nil {
				return wireValue{}, err
			}
			if items[k], err = toWire(item); err != nil {
				return wireValue{}, zerr.With(err, "key", k)
			}
		}
		payload = items
	case *Table:
		if val == nil {
			return wireValue{}, ErrNotMaterializable
		}
		if err := checkHandle(val.Name, val.Stage, val.Query); err != nil {
			return wireValue{}, err
		}
		payload = wireHandle{Name: val.Name, Stage: val.Stage, ObjectID: val.ObjectID, Query: val.Query}
	case *Blob:
		if val == nil {
			return wireValue{}, ErrNotMaterializable
		}
		if err := checkHandle(val.Name, val.Stage); err != nil {
			return wireValue{}, err
		}
		payload = wireHandle{Name: val.Name, Stage: val.Stage, ObjectID: val.ObjectID}
	default:
		return wireValue{}, ErrNotMaterializable
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return wireValue{}, zerr.Wrap(err, ErrNotMaterializable.Error())
	}
	return wireValue{T: v.Kind().String(), V: raw}, nil
}

func checkHandle(fields ...string) error {
	for _, f := range fields {
		if err := checkText(f); err != nil {
			return err
		}
	}
	return nil
}

func fromWire(w wireValue) (Value, error) {
	switch w.T {
	case KindNull.String():
		return Null{}, nil
	case KindBool.String():
		var b bool
		return decodeScalar(w, &b, func() Value { return Bool(b) })
	case KindInt.String():
		var n int64
		return decodeScalar(w, &n, func() Value { return Int(n) })
	case KindFloat.String():
		var f float64
		return decodeScalar(w, &f, func() Value { return Float(f) })
	case KindString.String():
		var s string
		return decodeScalar(w, &s, func() Value { return String(s) })
	case KindSequence.String():
		var items []wireValue
		if err := json.Unmarshal(w.V, &items); err != nil {
			return nil, zerr.Wrap(err, ErrInvalidValueEncoding.Error())
		}
		out := make(Sequence, len(items))
		for i, item := range items {
			v, err := fromWire(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindMapping.String():
		var items map[string]wireValue
		if err := json.Unmarshal(w.V, &items); err != nil {
			return nil, zerr.Wrap(err, ErrInvalidValueEncoding.Error())
		}
		out := make(Mapping, len(items))
		for k, item := range items {
			v, err := fromWire(item)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case KindTable.String():
		var h wireHandle
		if err := json.Unmarshal(w.V, &h); err != nil {
			return nil, zerr.Wrap(err, ErrInvalidValueEncoding.Error())
		}
		return &Table{Name: h.Name, Stage: h.Stage, ObjectID: h.ObjectID, Query: h.Query}, nil
	case KindBlob.String():
		var h wireHandle
		if err := json.Unmarshal(w.V, &h); err != nil {
			return nil, zerr.Wrap(err, ErrInvalidValueEncoding.Error())
		}
		return &Blob{Name: h.Name, Stage: h.Stage, ObjectID: h.ObjectID}, nil
	default:
		return nil, zerr.With(ErrInvalidValueEncoding, "tag", w.T)
	}
}

func decodeScalar(w wireValue, dst any, build func() Value) (Value, error) {
	if err := json.Unmarshal(w.V, dst); err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrInvalidValueEncoding.Error()), "tag", w.T)
	}
	return build(), nil
}
