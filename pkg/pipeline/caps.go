package pipeline

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Media kinds understood by the built-in elements.
const (
	MediaAny      = "ANY"
	MediaAudioRaw = "audio/x-raw"
	MediaVideoRaw = "video/x-raw"
)

// Caps describes the data a port carries: a media kind plus format
// parameters. The zero Caps accepts anything.
//
// Caps values are immutable; methods that change them return a copy.
type Caps struct {
	Kind   string
	Params map[string]any
}

// AnyCaps matches every other Caps.
var AnyCaps = Caps{Kind: MediaAny}

// NewCaps returns Caps of the given kind with params given as alternating
// keys and values.
func NewCaps(kind string, kv ...any) Caps {
	c := Caps{Kind: kind}
	for i := 0; i+1 < len(kv); i += 2 {
		c = c.With(fmt.Sprint(kv[i]), kv[i+1])
	}
	return c
}

// ParseCaps parses "kind, key=value, ..." notation, for example
// "audio/x-raw, rate=44100, channels=2". Integer values become int, the
// literals true and false become bool, everything else stays a string.
func ParseCaps(s string) (Caps, error) {
	fields := strings.Split(s, ",")
	kind := strings.TrimSpace(fields[0])
	if kind == "" {
		return Caps{}, fmt.Errorf("pipeline: parse caps %q: missing media kind", s)
	}
	c := Caps{Kind: kind}
	for _, f := range fields[1:] {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		k, v, ok := strings.Cut(f, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return Caps{}, fmt.Errorf("pipeline: parse caps %q: bad field %q", s, f)
		}
		c = c.With(k, parseCapsValue(strings.TrimSpace(v)))
	}
	return c, nil
}

// MustParseCaps is ParseCaps that panics on error. It is meant for
// package-level templates.
func MustParseCaps(s string) Caps {
	c, err := ParseCaps(s)
	if err != nil {
		panic(err)
	}
	return c
}

func parseCapsValue(v string) any {
	// Accept GStreamer style type hints such as (int)44100.
	if strings.HasPrefix(v, "(") {
		if _, rest, ok := strings.Cut(v, ")"); ok {
			v = rest
		}
	}
	v = strings.Trim(v, `"`)
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	return v
}

// IsAny reports whether c places no restriction on the media kind.
func (c Caps) IsAny() bool {
	return c.Kind == "" || c.Kind == MediaAny
}

// IsEmpty reports whether c is the zero value.
func (c Caps) IsEmpty() bool {
	return c.Kind == "" && len(c.Params) == 0
}

// HasKind reports whether the media kind starts with prefix, so
// HasKind("audio/x-raw") and HasKind("audio") both match raw audio.
func (c Caps) HasKind(prefix string) bool {
	return strings.HasPrefix(c.Kind, prefix)
}

// With returns a copy of c with key set to v.
func (c Caps) With(key string, v any) Caps {
	params := make(map[string]any, len(c.Params)+1)
	maps.Copy(params, c.Params)
	params[key] = v
	return Caps{Kind: c.Kind, Params: params}
}

// Without returns a copy of c without key.
func (c Caps) Without(key string) Caps {
	params := maps.Clone(c.Params)
	delete(params, key)
	return Caps{Kind: c.Kind, Params: params}
}

// Get returns the value of a parameter.
func (c Caps) Get(key string) (any, bool) {
	v, ok := c.Params[key]
	return v, ok
}

// Int returns an integer parameter.
func (c Caps) Int(key string) (int, bool) {
	switch v := c.Params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

// CanIntersect reports whether some data could satisfy both c and o: the
// kinds are equal (or either is any) and every parameter set on both sides
// has the same value.
func (c Caps) CanIntersect(o Caps) bool {
	_, ok := c.Intersect(o)
	return ok
}

// Intersect returns the caps satisfying both c and o.
func (c Caps) Intersect(o Caps) (Caps, bool) {
	var out Caps
	switch {
	case c.IsAny():
		out.Kind = o.Kind
	case o.IsAny() || c.Kind == o.Kind:
		out.Kind = c.Kind
	default:
		return Caps{}, false
	}
	params := make(map[string]any, len(c.Params)+len(o.Params))
	maps.Copy(params, c.Params)
	for k, v := range o.Params {
		if mine, ok := params[k]; ok && fmt.Sprint(mine) != fmt.Sprint(v) {
			return Caps{}, false
		}
		params[k] = v
	}
	if len(params) > 0 {
		out.Params = params
	}
	return out, true
}

// Equal reports whether c and o have the same kind and parameters.
func (c Caps) Equal(o Caps) bool {
	if c.Kind != o.Kind || len(c.Params) != len(o.Params) {
		return false
	}
	for k, v := range c.Params {
		ov, ok := o.Params[k]
		if !ok || fmt.Sprint(v) != fmt.Sprint(ov) {
			return false
		}
	}
	return true
}

// String renders c in the notation ParseCaps reads, with sorted keys.
func (c Caps) String() string {
	kind := c.Kind
	if kind == "" {
		kind = MediaAny
	}
	var sb strings.Builder
	sb.WriteString(kind)
	for _, k := range slices.Sorted(maps.Keys(c.Params)) {
		fmt.Fprintf(&sb, ", %s=%v", k, c.Params[k])
	}
	return sb.String()
}

// MarshalText implements encoding.TextMarshaler.
func (c Caps) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Caps) UnmarshalText(b []byte) error {
	parsed, err := ParseCaps(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
