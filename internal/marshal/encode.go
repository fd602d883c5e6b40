package marshal

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Encode writes the version header followed by v.
func Encode(v Value) ([]byte, error) {
	e := &encoder{symbols: make(map[string]int)}
	e.buf.WriteByte(MajorVersion)
	e.buf.WriteByte(MinorVersion)
	if err := e.value(v, 0); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf     bytes.Buffer
	symbols map[string]int // symbol key -> table index
}

// long writes Ruby's variable-length w_long integer.
func (e *encoder) long(x int64) {
	switch {
	case x == 0:
		e.buf.WriteByte(0)
		return
	case x > 0 && x < 123:
		e.buf.WriteByte(byte(x + 5))
		return
	case x < 0 && x > -124:
		e.buf.WriteByte(byte(x - 5))
		return
	}

	var tmp [9]byte
	for i := 1; i < len(tmp); i++ {
		tmp[i] = byte(x)
		x >>= 8
		if x == 0 {
			tmp[0] = byte(i)
			e.buf.Write(tmp[:i+1])
			return
		}
		if x == -1 {
			tmp[0] = byte(-i)
			e.buf.Write(tmp[:i+1])
			return
		}
	}
	// Only reachable for values that need all eight bytes.
	tmp[0] = 8
	e.buf.Write(tmp[:])
}

func (e *encoder) rawBytes(b []byte) {
	e.long(int64(len(b)))
	e.buf.Write(b)
}

// symbolKey identifies a symbol in the table. Symbols with the same name but
// different ivars are distinct, as they are in Ruby.
func symbolKey(s Symbol) string {
	if len(s.Attrs) == 0 {
		return ":" + s.Name
	}
	var sb strings.Builder
	sb.WriteString("I" + strconv.Quote(s.Name))
	for _, a := range s.Attrs {
		fmt.Fprintf(&sb, " %s=%s", symbolKey(a.Name), Inspect(a.Value))
	}
	return sb.String()
}

func (e *encoder) symbol(s Symbol, depth int) error {
	key := symbolKey(s)
	if idx, ok := e.symbols[key]; ok {
		e.buf.WriteByte(';')
		e.long(int64(idx))
		return nil
	}
	e.symbols[key] = len(e.symbols)
	if len(s.Attrs) > 0 {
		e.buf.WriteByte('I')
	}
	e.buf.WriteByte(':')
	e.rawBytes([]byte(s.Name))
	if len(s.Attrs) > 0 {
		return e.attrs(s.Attrs, depth+1)
	}
	return nil
}

func (e *encoder) attrs(attrs []Attr, depth int) error {
	e.long(int64(len(attrs)))
	for _, a := range attrs {
		if err := e.symbol(a.Name, depth); err != nil {
			return err
		}
		if err := e.value(a.Value, depth); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) value(v Value, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("marshal: nesting deeper than %d", MaxDepth)
	}
	depth++

	switch n := v.(type) {
	case nil:
		return fmt.Errorf("marshal: cannot encode nil Value (use Nil{})")
	case Nil, Bool:
		e.buf.WriteByte(n.Type())
	case Int:
		e.buf.WriteByte('i')
		e.long(int64(n))
	case Symbol:
		return e.symbol(n, depth)
	case *Link:
		e.buf.WriteByte('@')
		e.long(int64(n.Index))
	case *String:
		e.buf.WriteByte('"')
		e.rawBytes(n.Data)
	case *Float:
		e.buf.WriteByte('f')
		e.rawBytes(n.Raw)
	case *Bignum:
		if len(n.Magnitude)%2 != 0 {
			return fmt.Errorf("marshal: bignum magnitude has odd length %d", len(n.Magnitude))
		}
		e.buf.WriteByte('l')
		e.buf.WriteByte(n.Sign)
		e.long(int64(len(n.Magnitude) / 2))
		e.buf.Write(n.Magnitude)
	case *Regexp:
		e.buf.WriteByte('/')
		e.rawBytes(n.Source)
		e.buf.WriteByte(n.Options)
	case *Array:
		e.buf.WriteByte('[')
		e.long(int64(len(n.Elems)))
		for _, el := range n.Elems {
			if err := e.value(el, depth); err != nil {
				return err
			}
		}
	case *Hash:
		e.buf.WriteByte(n.Type())
		e.long(int64(len(n.Pairs)))
		for _, p := range n.Pairs {
			if err := e.value(p.Key, depth); err != nil {
				return err
			}
			if err := e.value(p.Value, depth); err != nil {
				return err
			}
		}
		if n.Default != nil {
			return e.value(n.Default, depth)
		}
	case *Object:
		e.buf.WriteByte('o')
		if err := e.symbol(n.Class, depth); err != nil {
			return err
		}
		return e.attrs(n.Attrs, depth)
	case *Struct:
		e.buf.WriteByte('S')
		if err := e.symbol(n.Class, depth); err != nil {
			return err
		}
		return e.attrs(n.Members, depth)
	case *UserDef:
		e.buf.WriteByte('u')
		if err := e.symbol(n.Class, depth); err != nil {
			return err
		}
		e.rawBytes(n.Data)
	case *UserMarshal:
		e.buf.WriteByte('U')
		if err := e.symbol(n.Class, depth); err != nil {
			return err
		}
		return e.value(n.Data, depth)
	case *Data:
		e.buf.WriteByte('d')
		if err := e.symbol(n.Class, depth); err != nil {
			return err
		}
		return e.value(n.Data, depth)
	case *ClassRef:
		e.buf.WriteByte('c')
		e.rawBytes(n.Name)
	case *ModuleRef:
		e.buf.WriteByte(n.Type())
		e.rawBytes(n.Name)
	case *Extended:
		e.buf.WriteByte('e')
		if err := e.symbol(n.Module, depth); err != nil {
			return err
		}
		return e.value(n.Object, depth)
	case *UserClass:
		e.buf.WriteByte('C')
		if err := e.symbol(n.Class, depth); err != nil {
			return err
		}
		return e.value(n.Object, depth)
	case *IVar:
		e.buf.WriteByte('I')
		if err := e.value(n.Object, depth); err != nil {
			return err
		}
		return e.attrs(n.Attrs, depth)
	default:
		return fmt.Errorf("marshal: unsupported value type %T", v)
	}
	return nil
}
