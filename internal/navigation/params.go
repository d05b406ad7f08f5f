package navigation

import (
	"encoding/json"
	"log/slog"
	"math"
	"sort"

	"github.com/agro-insight/agroinsight/internal/logging"
)

// Params is the untyped bag a transition carries.
type Params map[string]any

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// LogValue lists the keys with the token redacted.
func (p Params) LogValue() slog.Value {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		if k == ParamToken {
			s, _ := p[k].(string)
			attrs = append(attrs, slog.Any(k, logging.Secret(s)))
			continue
		}
		attrs = append(attrs, slog.Any(k, p[k]))
	}
	return slog.GroupValue(attrs...)
}

func (p Params) str(key string) string {
	s, _ := p[key].(string)
	return s
}

func (p Params) id(key string) int64 {
	n, _ := asInt64(p[key])
	return n
}

func (p Params) setString(key, v string) {
	if v != "" {
		p[key] = v
	}
}

func (p Params) setInt(key string, v int64) {
	if v != 0 {
		p[key] = v
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which is out of range.
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func matches(k Kind, v any) bool {
	switch k {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindInt:
		_, ok := asInt64(v)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	}
	return false
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}
