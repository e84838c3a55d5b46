package domain

import (
	"strconv"
	"unicode/utf8"

	"go.trai.ch/zerr"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	// KindNull is the absent scalar.
	KindNull Kind = iota
	// KindBool is a boolean scalar.
	KindBool
	// KindInt is a 64-bit integer scalar.
	KindInt
	// KindFloat is a 64-bit float scalar.
	KindFloat
	// KindString is a string scalar.
	KindString
	// KindSequence is an ordered list of values.
	KindSequence
	// KindMapping is a string-keyed map of values.
	KindMapping
	// KindTable is a handle to a table stored under a stage.
	KindTable
	// KindBlob is a handle to an opaque binary object stored under a stage.
	KindBlob
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "str",
	KindSequence: "seq",
	KindMapping:  "map",
	KindTable:    "table",
	KindBlob:     "blob",
}

// String returns the wire tag of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a materializable value: the only thing allowed to cross task boundaries.
// The set of implementations is closed; see the Kind constants.
type Value interface {
	Kind() Kind
	sealed()
}

type (
	// Null is the absent value.
	Null struct{}
	// Bool is a boolean scalar.
	Bool bool
	// Int is an integer scalar.
	Int int64
	// Float is a floating point scalar.
	Float float64
	// String is a string scalar.
	String string
	// Sequence is an ordered list of values.
	Sequence []Value
	// Mapping maps string keys to values.
	Mapping map[string]Value
)

// Table is a handle to tabular data owned by the store.
// Data is the in-process payload; it is cleared once the store has persisted it.
// Query holds the deferred expression produced by lazy tasks.
type Table struct {
	Name     string
	Stage    string
	ObjectID string
	Query    string
	Data     []byte
}

// Blob is a handle to an opaque binary object owned by the store.
type Blob struct {
	Name     string
	Stage    string
	ObjectID string
	Data     []byte
}

func (Null) Kind() Kind     { return KindNull }
func (Bool) Kind() Kind     { return KindBool }
func (Int) Kind() Kind      { return KindInt }
func (Float) Kind() Kind    { return KindFloat }
func (String) Kind() Kind   { return KindString }
func (Sequence) Kind() Kind { return KindSequence }
func (Mapping) Kind() Kind  { return KindMapping }
func (*Table) Kind() Kind   { return KindTable }
func (*Blob) Kind() Kind    { return KindBlob }

func (Null) sealed()     {}
func (Bool) sealed()     {}
func (Int) sealed()      {}
func (Float) sealed()    {}
func (String) sealed()   {}
func (Sequence) sealed() {}
func (Mapping) sealed()  {}
func (*Table) sealed()   {}
func (*Blob) sealed()    {}

// NewTable creates a table handle carrying an in-process payload.
func NewTable(name string, data []byte) *Table {
	return &Table{Name: name, Data: data}
}

// NewLazyTable creates a table handle described by a deferred expression.
func NewLazyTable(name, query string) *Table {
	return &Table{Name: name, Query: query}
}

// NewBlob creates a blob handle carrying an in-process payload.
func NewBlob(name string, data []byte) *Blob {
	return &Blob{Name: name, Data: data}
}

// Seq builds a Sequence from the given values.
func Seq(values ...Value) Sequence {
	return Sequence(values)
}

// LeafMapper substitutes the handle leaves of a value tree.
// Adding a leaf kind to Value means adding a method here, so every mapper
// is forced to handle it.
type LeafMapper interface {
	MapTable(t *Table) (Value, error)
	MapBlob(b *Blob) (Value, error)
}

// LeafFuncs adapts a pair of functions to LeafMapper. A nil function keeps the leaf as is.
type LeafFuncs struct {
	Table func(t *Table) (Value, error)
	Blob  func(b *Blob) (Value, error)
}

// MapTable implements LeafMapper.
func (f LeafFuncs) MapTable(t *Table) (Value, error) {
	if f.Table == nil {
		return t, nil
	}
	return f.Table(t)
}

// MapBlob implements LeafMapper.
func (f LeafFuncs) MapBlob(b *Blob) (Value, error) {
	if f.Blob == nil {
		return b, nil
	}
	return f.Blob(b)
}

// MapLeaves rebuilds v with every Table and Blob leaf replaced by the mapper's result.
// Containers are copied; scalars are returned unchanged.
func MapLeaves(v Value, m LeafMapper) (Value, error) {
	switch val := v.(type) {
	case Null, Bool, Int, Float:
		return val, nil
	case String:
		if err := checkText(string(val)); err != nil {
			return nil, err
		}
		return val, nil
	case Sequence:
		out := make(Sequence, len(val))
		for i, item := range val {
			mapped, err := MapLeaves(item, m)
			if err != nil {
				return nil, err
			}
			out[i] = mapped
		}
		return out, nil
	case Mapping:
		out := make(Mapping, len(val))
		for k, item := range val {
			if err := checkText(k); err != nil {
				return nil, err
			}
			mapped, err := MapLeaves(item, m)
			if err != nil {
				return nil, zerr.With(err, "key", k)
			}
			out[k] = mapped
		}
		return out, nil
	case *Table:
		if val == nil {
			return nil, ErrNotMaterializable
		}
		return m.MapTable(val)
	case *Blob:
		if val == nil {
			return nil, ErrNotMaterializable
		}
		return m.MapBlob(val)
	default:
		return nil, ErrNotMaterializable
	}
}

// Validate reports whether v is a well-formed materializable tree.
func Validate(v Value) error {
	_, err := MapLeaves(v, LeafFuncs{})
	return err
}

// ClearPayloads returns a copy of v whose handles no longer carry in-process data.
func ClearPayloads(v Value) Value {
	out, err := MapLeaves(v, LeafFuncs{
		Table: func(t *Table) (Value, error) {
			cleared := *t
			cleared.Data = nil
			return &cleared, nil
		},
		Blob: func(b *Blob) (Value, error) {
			cleared := *b
			cleared.Data = nil
			return &cleared, nil
		},
	})
	if err != nil {
		return v
	}
	return out
}

// Tables collects the table handles contained in v in traversal order.
// Mapping entries are visited in sorted key order.
func Tables(v Value) []*Table {
	var tables []*Table
	collectTables(v, &tables)
	return tables
}

func collectTables(v Value, acc *[]*Table) {
	switch val := v.(type) {
	case Sequence:
		for _, item := range val {
			collectTables(item, acc)
		}
	case Mapping:
		for _, k := range sortedKeys(val) {
			collectTables(val[k], acc)
		}
	case *Table:
		if val != nil {
			*acc = append(*acc, val)
		}
	}
}

// checkText rejects strings the canonical encoding cannot carry exactly.
func checkText(s string) error {
	if !utf8.ValidString(s) {
		return zerr.With(ErrNotMaterializable, "text", strconv.QuoteToASCII(s))
	}
	return nil
}
