package script

import (
	"github.com/hpungsan/rxscripts/internal/marshal"
)

// Entry is one top-level element of a container: either a *Record or an
// *Opaque node. Classification happens once, when the container is parsed.
type Entry interface {
	// Position is the element's index in the container's top-level array.
	Position() int
}

// Record is a well-formed script entry: [id, name, compressed source, ...].
// Elements past the third are carried along untouched.
type Record struct {
	Index    int
	Name     DisplayName
	SafeName string

	node *marshal.Array
}

// Opaque is a top-level element that is not a script record. It is written
// back exactly as it was read.
type Opaque struct {
	Index int
	Value marshal.Value
}

func (r *Record) Position() int { return r.Index }
func (o *Opaque) Position() int { return o.Index }

// ID returns the record's stored id.
func (r *Record) ID() int64 {
	id, _ := marshal.AsInt(r.node.Elems[0])
	return id
}

// RawName returns the name node as stored in the container.
func (r *Record) RawName() marshal.Value {
	return r.node.Elems[1]
}

// Payload returns the compressed source bytes.
func (r *Record) Payload() []byte {
	b, _ := marshal.AsBytes(r.node.Elems[2])
	return b
}

// SetPayload replaces the compressed source bytes in place.
func (r *Record) SetPayload(p []byte) {
	marshal.SetBytes(r.node.Elems[2], p)
}

// Source decompresses the payload. Failures are *DecodeFailure.
func (r *Record) Source() (string, error) {
	return Decompress(r.Payload())
}

// classify decides whether v is a script record. A record is an array with
// at least three elements whose first is an integer and whose third is a
// byte string it owns; a payload reached through an object link is shared
// with another node and cannot be rewritten safely. The name is not
// type-checked.
func classify(index int, v marshal.Value) Entry {
	arr, ok := v.(*marshal.Array)
	if !ok || len(arr.Elems) < 3 {
		return &Opaque{Index: index, Value: v}
	}
	if _, ok := marshal.AsInt(arr.Elems[0]); !ok {
		return &Opaque{Index: index, Value: v}
	}
	if !marshal.OwnsBytes(arr.Elems[2]) {
		return &Opaque{Index: index, Value: v}
	}

	name := NormalizeName(arr.Elems[1])
	return &Record{
		Index:    index,
		Name:     name,
		SafeName: Sanitize(name.Text),
		node:     arr,
	}
}

// NewRecordValue builds the marshal node for a fresh script record with a
// plain (encoding-less) name string, the shape RPG Maker XP writes.
func NewRecordValue(id int64, name string, source []byte, level int) (marshal.Value, error) {
	payload, err := Compress(source, level)
	if err != nil {
		return nil, err
	}
	return &marshal.Array{Elems: []marshal.Value{
		marshal.Int(id),
		&marshal.String{Data: []byte(name)},
		&marshal.String{Data: payload},
	}}, nil
}
