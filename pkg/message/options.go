package message

import (
	"encoding/binary"
	"sort"
	"strings"
)

// Option is a single (number, raw value) pair.
type Option struct {
	ID    OptionID
	Value []byte
}

// Options is kept sorted ascending by ID. Options that share a number keep
// their insertion order, which is significant for repeatable options such as
// Uri-Path.
type Options []Option

// insertIndex returns the position after the last option numbered <= id.
func (o Options) insertIndex(id OptionID) int {
	return sort.Search(len(o), func(i int) bool {
		return o[i].ID > id
	})
}

// Add appends a value for id after any existing values with the same number.
func (o Options) Add(id OptionID, value []byte) Options {
	idx := o.insertIndex(id)
	o = append(o, Option{})
	copy(o[idx+1:], o[idx:])
	o[idx] = Option{ID: id, Value: value}
	return o
}

// Set replaces all values of id with a single value.
func (o Options) Set(id OptionID, value []byte) Options {
	return o.Remove(id).Add(id, value)
}

// Remove deletes every value of id.
func (o Options) Remove(id OptionID) Options {
	out := o[:0]
	for _, opt := range o {
		if opt.ID != id {
			out = append(out, opt)
		}
	}
	return out
}

// Has returns true if at least one value of id is present.
func (o Options) Has(id OptionID) bool {
	_, ok := o.GetFirst(id)
	return ok
}

// Get returns every value of id in wire order.
func (o Options) Get(id OptionID) [][]byte {
	var values [][]byte
	for _, opt := range o {
		if opt.ID == id {
			values = append(values, opt.Value)
		}
	}
	return values
}

// GetFirst returns the first value of id.
func (o Options) GetFirst(id OptionID) ([]byte, bool) {
	for _, opt := range o {
		if opt.ID == id {
			return opt.Value, true
		}
	}
	return nil, false
}

// AddUint adds an unsigned integer value using the minimal big-endian
// encoding (zero encodes as an empty value).
func (o Options) AddUint(id OptionID, v uint32) Options {
	return o.Add(id, EncodeUint(v))
}

// SetUint replaces id with a single unsigned integer value.
func (o Options) SetUint(id OptionID, v uint32) Options {
	return o.Set(id, EncodeUint(v))
}

// GetUint decodes the first value of id as an unsigned integer.
func (o Options) GetUint(id OptionID) (uint32, bool, error) {
	value, ok := o.GetFirst(id)
	if !ok {
		return 0, false, nil
	}
	v, err := DecodeUint(value)
	if err != nil {
		return 0, true, err
	}
	return v, true, nil
}

// AddString adds a UTF-8 string value.
func (o Options) AddString(id OptionID, s string) Options {
	return o.Add(id, []byte(s))
}

// SetPath replaces the Uri-Path options with the segments of path.
// Leading and trailing slashes are ignored.
func (o Options) SetPath(path string) Options {
	o = o.Remove(URIPath)
	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		if segment == "" {
			continue
		}
		o = o.AddString(URIPath, segment)
	}
	return o
}

// Path joins the Uri-Path segments into "/a/b".
func (o Options) Path() string {
	segments := o.Get(URIPath)
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.Write(s)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// AddQuery adds one Uri-Query option ("key=value").
func (o Options) AddQuery(query string) Options {
	return o.AddString(URIQuery, query)
}

// Queries returns the Uri-Query values.
func (o Options) Queries() []string {
	values := o.Get(URIQuery)
	queries := make([]string, 0, len(values))
	for _, v := range values {
		queries = append(queries, string(v))
	}
	return queries
}

// EncodeUint encodes v in the fewest big-endian bytes; 0 is the empty value.
func EncodeUint(v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	i := 0
	for i < len(buf) && buf[i] == 0 {
		i++
	}
	out := make([]byte, len(buf)-i)
	copy(out, buf[i:])
	return out
}

// DecodeUint decodes a big-endian unsigned integer of at most 4 bytes.
func DecodeUint(value []byte) (uint32, error) {
	if len(value) > 4 {
		return 0, ErrOptionValueTooLong
	}
	var v uint32
	for _, b := range value {
		v = v<<8 | uint32(b)
	}
	return v, nil
}
