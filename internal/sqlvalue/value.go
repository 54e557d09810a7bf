// Package sqlvalue holds the closed set of literal kinds dbsnap renders into
// SQL text. Values are classified once, when they enter the program (caller
// filters, captured rows), and rendered by kind afterwards.
package sqlvalue

import (
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies how a value is rendered as a SQL literal.
type Kind int

const (
	Null Kind = iota
	Text
	Integer
	Decimal
	Binary
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Decimal:
		return "decimal"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TimeLayout is used for time values captured from drivers. It keeps
// fractional seconds and the zone offset.
const TimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// Value is an immutable SQL literal.
type Value struct {
	kind    Kind
	text    string
	integer int64
	decimal decimal.Decimal
	bytes   []byte
}

// NullValue returns the NULL literal.
func NullValue() Value { return Value{} }

// TextOf returns a textual value.
func TextOf(s string) Value { return Value{kind: Text, text: s} }

// IntegerOf returns an integer value.
func IntegerOf(i int64) Value { return Value{kind: Integer, integer: i} }

// DecimalOf returns a decimal value.
func DecimalOf(d decimal.Decimal) Value { return Value{kind: Decimal, decimal: d} }

// BinaryOf returns a binary value holding a copy of b.
func BinaryOf(b []byte) Value { return Value{kind: Binary, bytes: append([]byte{}, b...)} }

// Of classifies a Go value coming from a caller or a database driver.
func Of(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return x
	case *Value:
		if x == nil {
			return NullValue()
		}
		return *x
	case string:
		return TextOf(x)
	case *string:
		if x == nil {
			return NullValue()
		}
		return TextOf(*x)
	case []byte:
		if x == nil {
			return NullValue()
		}
		return BinaryOf(x)
	case int:
		return IntegerOf(int64(x))
	case int8:
		return IntegerOf(int64(x))
	case int16:
		return IntegerOf(int64(x))
	case int32:
		return IntegerOf(int64(x))
	case int64:
		return IntegerOf(x)
	case uint8:
		return IntegerOf(int64(x))
	case uint16:
		return IntegerOf(int64(x))
	case uint32:
		return IntegerOf(int64(x))
	case uint:
		return unsigned(uint64(x))
	case uint64:
		return unsigned(x)
	case float32:
		return float(float64(x))
	case float64:
		return float(x)
	case decimal.Decimal:
		return DecimalOf(x)
	case bool:
		return TextOf(strconv.FormatBool(x))
	case time.Time:
		return TextOf(x.Format(TimeLayout))
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return TextOf(fmt.Sprint(x))
		}
		if _, again := dv.(driver.Valuer); again {
			return TextOf(fmt.Sprint(dv))
		}
		return Of(dv)
	case fmt.Stringer:
		return TextOf(x.String())
	default:
		return composite(x)
	}
}

// composite renders maps, slices and arrays (decoded JSON documents) as
// JSON text.
func composite(v any) Value {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		if b, err := json.Marshal(v); err == nil {
			return TextOf(string(b))
		}
	}
	return TextOf(fmt.Sprint(v))
}

func unsigned(u uint64) Value {
	if u > math.MaxInt64 {
		return DecimalOf(decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0))
	}
	return IntegerOf(int64(u))
}

func float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return TextOf(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return DecimalOf(decimal.NewFromFloat(f))
}

// Kind reports the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the NULL literal.
func (v Value) IsNull() bool { return v.kind == Null }

// IsTextual reports whether v renders quoted.
func (v Value) IsTextual() bool { return v.kind == Text }

// IsBlank reports whether v is NULL or whitespace-only text.
func (v Value) IsBlank() bool {
	switch v.kind {
	case Null:
		return true
	case Text:
		return strings.TrimSpace(v.text) == ""
	default:
		return false
	}
}

// String returns the unquoted representation.
func (v Value) String() string {
	switch v.kind {
	case Text:
		return v.text
	case Integer:
		return strconv.FormatInt(v.integer, 10)
	case Decimal:
		return v.decimal.String()
	case Binary:
		return hex.EncodeToString(v.bytes)
	default:
		return "NULL"
	}
}

// Bytes returns a copy of a binary value's bytes, nil for other kinds.
func (v Value) Bytes() []byte {
	if v.kind != Binary {
		return nil
	}
	return append([]byte{}, v.bytes...)
}

// Literal renders v as a SQL literal: text quoted, numbers bare, binary as
// an X'..' hex literal, NULL as is.
func (v Value) Literal() string {
	switch v.kind {
	case Text:
		return Quote(v.text)
	case Binary:
		return "X'" + v.String() + "'"
	default:
		return v.String()
	}
}

// ByteaLiteral renders a binary value in PostgreSQL bytea hex input form.
// Other kinds render as Literal.
func (v Value) ByteaLiteral() string {
	if v.kind != Binary {
		return v.Literal()
	}
	return `'\x` + v.String() + "'"
}

// Quoted renders v as a quoted string literal whatever its kind.
func (v Value) Quoted() string {
	if v.kind == Null {
		return v.String()
	}
	return Quote(v.String())
}

// Quote wraps s in single quotes, doubling embedded quotes.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
