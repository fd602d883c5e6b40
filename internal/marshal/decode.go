package marshal

import (
	"errors"
	"fmt"
)

// MaxDepth bounds node nesting so hostile input cannot exhaust the stack.
const MaxDepth = 512

// ErrTruncated is returned when the input ends inside a node.
var ErrTruncated = errors.New("marshal: unexpected end of data")

// SyntaxError describes malformed input at a byte offset.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("marshal: %s at offset %d", e.Msg, e.Offset)
}

// Decode parses a complete Marshal stream: the version header followed by one
// root value. Bytes after the root value are ignored, as Ruby does.
func Decode(data []byte) (Value, error) {
	d := &decoder{data: data}
	major, err := d.byte()
	if err != nil {
		return nil, err
	}
	minor, err := d.byte()
	if err != nil {
		return nil, err
	}
	if major != MajorVersion || minor > MinorVersion {
		return nil, &SyntaxError{Offset: 0, Msg: fmt.Sprintf("unsupported format version %d.%d", major, minor)}
	}
	return d.value(0)
}

type decoder struct {
	data    []byte
	pos     int
	symbols []Symbol
	objects []Value
}

func (d *decoder) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: d.pos, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, ErrTruncated
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, d.errorf("negative length %d", n)
	}
	if n > len(d.data)-d.pos {
		return nil, ErrTruncated
	}
	b := make([]byte, n)
	copy(b, d.data[d.pos:d.pos+n])
	d.pos += n
	return b, nil
}

// long reads Ruby's variable-length w_long integer.
func (d *decoder) long() (int64, error) {
	c, err := d.byte()
	if err != nil {
		return 0, err
	}
	n := int64(int8(c))
	switch {
	case n == 0:
		return 0, nil
	case n >= 5:
		return n - 5, nil
	case n <= -5:
		return n + 5, nil
	case n > 0:
		var x int64
		for i := int64(0); i < n; i++ {
			b, err := d.byte()
			if err != nil {
				return 0, err
			}
			x |= int64(b) << (8 * i)
		}
		return x, nil
	default:
		x := int64(-1)
		for i := int64(0); i < -n; i++ {
			b, err := d.byte()
			if err != nil {
				return 0, err
			}
			x &^= 0xff << (8 * i)
			x |= int64(b) << (8 * i)
		}
		return x, nil
	}
}

func (d *decoder) length() (int, error) {
	n, err := d.long()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > int64(len(d.data)) {
		return 0, d.errorf("invalid length %d", n)
	}
	return int(n), nil
}

func (d *decoder) rawBytes() ([]byte, error) {
	n, err := d.length()
	if err != nil {
		return nil, err
	}
	return d.bytes(n)
}

// register appends v to the object table. Containers register before their
// children, matching the order Ruby assigns link indices.
func (d *decoder) register(v Value) {
	d.objects = append(d.objects, v)
}

func (d *decoder) symbol(depth int) (Symbol, error) {
	t, err := d.byte()
	if err != nil {
		return Symbol{}, err
	}
	switch t {
	case ':':
		return d.symbolBody()
	case ';':
		return d.symlink()
	case 'I':
		return d.ivarSymbol(depth)
	}
	return Symbol{}, d.errorf("expected symbol, got type %q", t)
}

// ivarSymbol reads the rest of an I: symbol. The symbol takes its table slot
// before its ivars are read, so ivar names are numbered after it.
func (d *decoder) ivarSymbol(depth int) (Symbol, error) {
	if depth > MaxDepth {
		return Symbol{}, d.errorf("nesting deeper than %d", MaxDepth)
	}
	t, err := d.byte()
	if err != nil {
		return Symbol{}, err
	}
	if t != ':' {
		return Symbol{}, d.errorf("expected symbol after ivar marker, got type %q", t)
	}
	idx := len(d.symbols)
	if _, err := d.symbolBody(); err != nil {
		return Symbol{}, err
	}
	attrs, err := d.attrs(depth + 1)
	if err != nil {
		return Symbol{}, err
	}
	d.symbols[idx].Attrs = attrs
	return d.symbols[idx], nil
}

func (d *decoder) symbolBody() (Symbol, error) {
	b, err := d.rawBytes()
	if err != nil {
		return Symbol{}, err
	}
	sym := Symbol{Name: string(b)}
	d.symbols = append(d.symbols, sym)
	return sym, nil
}

func (d *decoder) symlink() (Symbol, error) {
	n, err := d.long()
	if err != nil {
		return Symbol{}, err
	}
	if n < 0 || n >= int64(len(d.symbols)) {
		return Symbol{}, d.errorf("symbol link %d out of range", n)
	}
	return d.symbols[n], nil
}

func (d *decoder) attrs(depth int) ([]Attr, error) {
	n, err := d.length()
	if err != nil {
		return nil, err
	}
	attrs := make([]Attr, 0, n)
	for i := 0; i < n; i++ {
		name, err := d.symbol(depth)
		if err != nil {
			return nil, err
		}
		v, err := d.value(depth)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attr{Name: name, Value: v})
	}
	return attrs, nil
}

func (d *decoder) value(depth int) (Value, error) {
	if depth > MaxDepth {
		return nil, d.errorf("nesting deeper than %d", MaxDepth)
	}
	depth++

	t, err := d.byte()
	if err != nil {
		return nil, err
	}

	switch t {
	case '0':
		return Nil{}, nil
	case 'T':
		return Bool(true), nil
	case 'F':
		return Bool(false), nil
	case 'i':
		n, err := d.long()
		if err != nil {
			return nil, err
		}
		return Int(n), nil
	case ':':
		return d.symbolBody()
	case ';':
		return d.symlink()
	case '@':
		n, err := d.long()
		if err != nil {
			return nil, err
		}
		if n < 0 || n >= int64(len(d.objects)) {
			return nil, d.errorf("object link %d out of range", n)
		}
		return &Link{Index: int(n), Target: d.objects[n]}, nil

	case '"':
		s := &String{}
		d.register(s)
		if s.Data, err = d.rawBytes(); err != nil {
			return nil, err
		}
		return s, nil

	case 'f':
		f := &Float{}
		d.register(f)
		if f.Raw, err = d.rawBytes(); err != nil {
			return nil, err
		}
		return f, nil

	case 'l':
		b := &Bignum{}
		d.register(b)
		if b.Sign, err = d.byte(); err != nil {
			return nil, err
		}
		if b.Sign != '+' && b.Sign != '-' {
			return nil, d.errorf("invalid bignum sign %q", b.Sign)
		}
		shorts, err := d.length()
		if err != nil {
			return nil, err
		}
		if b.Magnitude, err = d.bytes(shorts * 2); err != nil {
			return nil, err
		}
		return b, nil

	case '/':
		r := &Regexp{}
		d.register(r)
		if r.Source, err = d.rawBytes(); err != nil {
			return nil, err
		}
		if r.Options, err = d.byte(); err != nil {
			return nil, err
		}
		return r, nil

	case '[':
		a := &Array{}
		d.register(a)
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		a.Elems = make([]Value, 0, n)
		for i := 0; i < n; i++ {
			v, err := d.value(depth)
			if err != nil {
				return nil, err
			}
			a.Elems = append(a.Elems, v)
		}
		return a, nil

	case '{', '}':
		h := &Hash{}
		d.register(h)
		n, err := d.length()
		if err != nil {
			return nil, err
		}
		h.Pairs = make([]Pair, 0, n)
		for i := 0; i < n; i++ {
			k, err := d.value(depth)
			if err != nil {
				return nil, err
			}
			v, err := d.value(depth)
			if err != nil {
				return nil, err
			}
			h.Pairs = append(h.Pairs, Pair{Key: k, Value: v})
		}
		if t == '}' {
			if h.Default, err = d.value(depth); err != nil {
				return nil, err
			}
		}
		return h, nil

	case 'o':
		o := &Object{}
		d.register(o)
		if o.Class, err = d.symbol(depth); err != nil {
			return nil, err
		}
		if o.Attrs, err = d.attrs(depth); err != nil {
			return nil, err
		}
		return o, nil

	case 'S':
		s := &Struct{}
		d.register(s)
		if s.Class, err = d.symbol(depth); err != nil {
			return nil, err
		}
		if s.Members, err = d.attrs(depth); err != nil {
			return nil, err
		}
		return s, nil

	case 'u':
		u := &UserDef{}
		if u.Class, err = d.symbol(depth); err != nil {
			return nil, err
		}
		if u.Data, err = d.rawBytes(); err != nil {
			return nil, err
		}
		d.register(u)
		return u, nil

	case 'U':
		u := &UserMarshal{}
		d.register(u)
		if u.Class, err = d.symbol(depth); err != nil {
			return nil, err
		}
		if u.Data, err = d.value(depth); err != nil {
			return nil, err
		}
		return u, nil

	case 'd':
		v := &Data{}
		d.register(v)
		if v.Class, err = d.symbol(depth); err != nil {
			return nil, err
		}
		if v.Data, err = d.value(depth); err != nil {
			return nil, err
		}
		return v, nil

	case 'c':
		c := &ClassRef{}
		d.register(c)
		if c.Name, err = d.rawBytes(); err != nil {
			return nil, err
		}
		return c, nil

	case 'm', 'M':
		m := &ModuleRef{Old: t == 'M'}
		d.register(m)
		if m.Name, err = d.rawBytes(); err != nil {
			return nil, err
		}
		return m, nil

	case 'e':
		e := &Extended{}
		if e.Module, err = d.symbol(depth); err != nil {
			return nil, err
		}
		if e.Object, err = d.value(depth); err != nil {
			return nil, err
		}
		return e, nil

	case 'C':
		c := &UserClass{}
		if c.Class, err = d.symbol(depth); err != nil {
			return nil, err
		}
		if c.Object, err = d.value(depth); err != nil {
			return nil, err
		}
		return c, nil

	case 'I':
		if d.pos < len(d.data) && d.data[d.pos] == ':' {
			return d.ivarSymbol(depth)
		}
		iv := &IVar{}
		if iv.Object, err = d.value(depth); err != nil {
			return nil, err
		}
		if iv.Attrs, err = d.attrs(depth); err != nil {
			return nil, err
		}
		return iv, nil
	}

	return nil, &SyntaxError{Offset: d.pos - 1, Msg: fmt.Sprintf("unknown type byte 0x%02x", t)}
}
