package store

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// NormalizeValue maps a driver or decoder value onto the Row value domain
// (string, float64, bool, nil).
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case bool:
		return t
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return signedValue(int64(t))
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return signedValue(t)
	case uint:
		return unsignedValue(uint64(t))
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return unsignedValue(t)
	case json.Number:
		return numberValue(t.String())
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case [16]byte:
		return uuid.UUID(t).String()
	case uuid.UUID:
		return t.String()
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		if t.Int != nil && t.Exp >= 0 && !t.NaN && t.InfinityModifier == pgtype.Finite {
			n := new(big.Int).Mul(t.Int, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(t.Exp)), nil))
			return bigValue(n)
		}
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case pgtype.UUID:
		if !t.Valid {
			return nil
		}
		return uuid.UUID(t.Bytes).String()
	case *big.Int:
		return bigValue(t)
	case fmt.Stringer:
		return t.String()
	default:
		// Composite values (json/jsonb, arrays) are shown as JSON text.
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// maxExactInt is the largest magnitude a float64 holds without losing
// integer digits. Integers beyond it are kept as decimal text.
const maxExactInt = 1 << 53

func signedValue(n int64) any {
	if n > maxExactInt || n < -maxExactInt {
		return strconv.FormatInt(n, 10)
	}
	return float64(n)
}

func unsignedValue(n uint64) any {
	if n > maxExactInt {
		return strconv.FormatUint(n, 10)
	}
	return float64(n)
}

func bigValue(n *big.Int) any {
	if n.IsInt64() {
		return signedValue(n.Int64())
	}
	return n.String()
}

// numberValue converts decoded JSON number text. Integer literals too large
// for a float64 stay as their exact digits.
func numberValue(s string) any {
	if !strings.ContainsAny(s, ".eE") {
		if n, ok := new(big.Int).SetString(s, 10); ok {
			return bigValue(n)
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// NormalizeRow normalizes every value of r in place and returns it.
func NormalizeRow(r Row) Row {
	for k, v := range r {
		r[k] = NormalizeValue(v)
	}
	return r
}

// FormatIdentity renders an identity value as the string used for lookups.
func FormatIdentity(v any) (string, bool) {
	switch t := NormalizeValue(v).(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprint(t), true
	}
}
