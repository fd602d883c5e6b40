// Package marshal reads and writes the Ruby Marshal 4.8 object-graph format
// used by RPG Maker data files.
//
// Every node type the format defines is decoded into a concrete Go type, so a
// graph that is decoded and re-encoded without modification produces the same
// bytes. Object links ('@') are kept as explicit Link nodes carrying their
// original table index, which keeps them valid as long as callers only replace
// node contents and never add or remove non-immediate nodes.
package marshal

import (
	"fmt"
	"strconv"
)

// Format version written in the two-byte header.
const (
	MajorVersion = 4
	MinorVersion = 8
)

// Value is any decoded Marshal node.
type Value interface {
	// Type returns the wire type byte that introduces the node.
	Type() byte
}

// Nil is Ruby nil.
type Nil struct{}

// Bool is Ruby true or false.
type Bool bool

// Int is a Fixnum.
type Int int64

// Symbol is a Ruby symbol. Attrs holds the ivars of a symbol written with
// 'I', which Ruby uses to record the encoding of non-ASCII names. Encoders
// re-derive symbol links, so Symbol never records its table position.
type Symbol struct {
	Name  string
	Attrs []Attr
}

// Sym returns a plain symbol with no ivars.
func Sym(name string) Symbol { return Symbol{Name: name} }

// Bignum keeps the sign byte and little-endian magnitude exactly as read.
type Bignum struct {
	Sign      byte // '+' or '-'
	Magnitude []byte
}

// Float keeps Ruby's textual float representation as read.
type Float struct {
	Raw []byte
}

// String is a Ruby String without encoding information. Encoded strings
// arrive wrapped in an IVar.
type String struct {
	Data []byte
}

// Regexp is a Ruby Regexp.
type Regexp struct {
	Source  []byte
	Options byte
}

// Array is a Ruby Array.
type Array struct {
	Elems []Value
}

// Pair is one hash entry.
type Pair struct {
	Key   Value
	Value Value
}

// Hash is a Ruby Hash. Default is nil unless the hash was written with '}'.
type Hash struct {
	Pairs   []Pair
	Default Value
}

// Attr is a named attribute: an instance variable, struct member or ivar.
type Attr struct {
	Name  Symbol
	Value Value
}

// Object is a plain Ruby object with instance variables.
type Object struct {
	Class Symbol
	Attrs []Attr
}

// Struct is a Ruby Struct instance.
type Struct struct {
	Class   Symbol
	Members []Attr
}

// UserDef is an object serialized through _dump ('u'), e.g. RPG::Table.
type UserDef struct {
	Class Symbol
	Data  []byte
}

// UserMarshal is an object serialized through marshal_dump ('U').
type UserMarshal struct {
	Class Symbol
	Data  Value
}

// Data is a T_DATA object serialized through _dump_data ('d').
type Data struct {
	Class Symbol
	Data  Value
}

// ClassRef is a reference to a class by name.
type ClassRef struct {
	Name []byte
}

// ModuleRef is a reference to a module by name. Old marks the legacy 'M' form.
type ModuleRef struct {
	Name []byte
	Old  bool
}

// Extended is an object extended with a module ('e').
type Extended struct {
	Module Symbol
	Object Value
}

// UserClass is a String, Regexp, Array or Hash subclass instance ('C').
type UserClass struct {
	Class  Symbol
	Object Value
}

// IVar wraps an object that carries instance variables ('I'), most often a
// String with its encoding.
type IVar struct {
	Object Value
	Attrs  []Attr
}

// Link refers back to an earlier object by its position in the object table.
type Link struct {
	Index  int
	Target Value
}

func (Nil) Type() byte          { return '0' }
func (Int) Type() byte          { return 'i' }
func (Symbol) Type() byte       { return ':' }
func (*Bignum) Type() byte      { return 'l' }
func (*Float) Type() byte       { return 'f' }
func (*String) Type() byte      { return '"' }
func (*Regexp) Type() byte      { return '/' }
func (*Array) Type() byte       { return '[' }
func (*Object) Type() byte      { return 'o' }
func (*Struct) Type() byte      { return 'S' }
func (*UserDef) Type() byte     { return 'u' }
func (*UserMarshal) Type() byte { return 'U' }
func (*Data) Type() byte        { return 'd' }
func (*ClassRef) Type() byte    { return 'c' }
func (*Extended) Type() byte    { return 'e' }
func (*UserClass) Type() byte   { return 'C' }
func (*IVar) Type() byte        { return 'I' }
func (*Link) Type() byte        { return '@' }

func (b Bool) Type() byte {
	if b {
		return 'T'
	}
	return 'F'
}

func (h *Hash) Type() byte {
	if h.Default != nil {
		return '}'
	}
	return '{'
}

func (m *ModuleRef) Type() byte {
	if m.Old {
		return 'M'
	}
	return 'm'
}

// Resolve follows object links until it reaches a non-link node.
func Resolve(v Value) Value {
	for {
		l, ok := v.(*Link)
		if !ok || l.Target == nil {
			return v
		}
		v = l.Target
	}
}

// AsInt reports the integer value of a Fixnum, or of a Bignum small enough to
// fit in an int64.
func AsInt(v Value) (int64, bool) {
	switch n := Resolve(v).(type) {
	case Int:
		return int64(n), true
	case *Bignum:
		if len(n.Magnitude) > 8 {
			return 0, false
		}
		var u uint64
		for i := len(n.Magnitude) - 1; i >= 0; i-- {
			u = u<<8 | uint64(n.Magnitude[i])
		}
		if u > 1<<63-1 {
			return 0, false
		}
		if n.Sign == '-' {
			return -int64(u), true
		}
		return int64(u), true
	}
	return 0, false
}

// stringNode finds the String carried by v through links, ivar and
// user-class wrappers.
func stringNode(v Value) *String {
	for {
		switch n := Resolve(v).(type) {
		case *String:
			return n
		case *IVar:
			v = n.Object
		case *UserClass:
			v = n.Object
		default:
			return nil
		}
	}
}

// AsBytes returns the bytes of a String node, looking through links and
// ivar or user-class wrappers.
func AsBytes(v Value) ([]byte, bool) {
	s := stringNode(v)
	if s == nil {
		return nil, false
	}
	return s.Data, true
}

// ownString is stringNode without following links: it finds a String held
// directly by v, so writing to it cannot change what another node links to.
func ownString(v Value) *String {
	for {
		switch n := v.(type) {
		case *String:
			return n
		case *IVar:
			v = n.Object
		case *UserClass:
			v = n.Object
		default:
			return nil
		}
	}
}

// OwnsBytes reports whether v holds a String directly (possibly inside ivar
// or user-class wrappers) rather than through an object link.
func OwnsBytes(v Value) bool {
	return ownString(v) != nil
}

// SetBytes replaces the bytes of the String carried by v, keeping any
// wrapper (and therefore any encoding ivar) in place. Links are not
// followed, since the target is shared with the node that owns it. It
// reports whether the bytes were replaced.
func SetBytes(v Value, data []byte) bool {
	s := ownString(v)
	if s == nil {
		return false
	}
	s.Data = data
	return true
}

// Inspect renders v in a short Ruby-like notation for diagnostics and for
// names that are not strings.
func Inspect(v Value) string {
	switch n := v.(type) {
	case nil:
		return "<nil>"
	case Nil:
		return "nil"
	case Bool:
		return strconv.FormatBool(bool(n))
	case Int:
		return strconv.FormatInt(int64(n), 10)
	case Symbol:
		return ":" + n.Name
	case *Bignum:
		if i, ok := AsInt(n); ok {
			return strconv.FormatInt(i, 10)
		}
		return fmt.Sprintf("%cbignum(%d bytes)", n.Sign, len(n.Magnitude))
	case *Float:
		return string(n.Raw)
	case *String:
		return strconv.Quote(string(n.Data))
	case *Regexp:
		return "/" + string(n.Source) + "/"
	case *Array:
		return fmt.Sprintf("[%d elements]", len(n.Elems))
	case *Hash:
		return fmt.Sprintf("{%d pairs}", len(n.Pairs))
	case *Object:
		return "#<" + n.Class.Name + ">"
	case *Struct:
		return "#<struct " + n.Class.Name + ">"
	case *UserDef:
		return "#<" + n.Class.Name + ">"
	case *UserMarshal:
		return "#<" + n.Class.Name + ">"
	case *Data:
		return "#<" + n.Class.Name + ">"
	case *ClassRef:
		return string(n.Name)
	case *ModuleRef:
		return string(n.Name)
	case *Extended:
		return Inspect(n.Object)
	case *UserClass:
		return Inspect(n.Object)
	case *IVar:
		return Inspect(n.Object)
	case *Link:
		if n.Target != nil {
			return Inspect(n.Target)
		}
		return fmt.Sprintf("@%d", n.Index)
	}
	return fmt.Sprintf("%T", v)
}
