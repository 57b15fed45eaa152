package simulator

import (
	"encoding/json"

	"github.com/funnyzak/mockflow/pkg/jsonvalue"
)

// Payload is the response data of a simulation: either a parsed JSON value or
// the raw body text when the body is not valid JSON. Source always holds the
// body text the payload came from.
type Payload struct {
	value  jsonvalue.Value
	parsed bool
	source string
}

// ParsePayload parses text as JSON, falling back to raw text.
func ParsePayload(text string) Payload {
	v, err := jsonvalue.Parse(text)
	if err != nil {
		return Payload{source: text}
	}
	return Payload{value: v, parsed: true, source: text}
}

// JSONPayload wraps an already built value.
func JSONPayload(v jsonvalue.Value) Payload {
	return Payload{value: v, parsed: true, source: v.String()}
}

// Value returns the parsed value and true, or a null value and false for raw text.
func (p Payload) Value() (jsonvalue.Value, bool) {
	return p.value, p.parsed
}

// IsJSON reports whether the body parsed as JSON.
func (p Payload) IsJSON() bool { return p.parsed }

// Raw returns the original body text.
func (p Payload) Raw() string { return p.source }

// Body returns the bytes to put on the wire.
func (p Payload) Body() []byte { return []byte(p.source) }

// Interface returns the payload the way encoding/json would decode it; raw
// text is returned as a string.
func (p Payload) Interface() interface{} {
	if !p.parsed {
		return p.source
	}
	return p.value.Interface()
}

// MarshalJSON encodes parsed payloads as their JSON value and raw text as a JSON string.
func (p Payload) MarshalJSON() ([]byte, error) {
	if !p.parsed {
		return json.Marshal(p.source)
	}
	return p.value.MarshalJSON()
}

// UnmarshalJSON accepts what MarshalJSON produces. A top-level JSON string
// decodes as raw text.
func (p *Payload) UnmarshalJSON(data []byte) error {
	v, err := jsonvalue.ParseBytes(data)
	if err != nil {
		return err
	}
	if s, ok := v.Str(); ok {
		*p = Payload{source: s}
		return nil
	}
	*p = JSONPayload(v)
	return nil
}
