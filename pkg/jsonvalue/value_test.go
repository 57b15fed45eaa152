package jsonvalue

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseKeepsMemberOrder(t *testing.T) {
	v, err := Parse(`{"zeta":1,"alpha":{"b":true,"a":null},"list":[1,"two",false]}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if v.Kind() != Object {
		t.Fatalf("expected object, got %s", v.Kind())
	}

	var keys []string
	for _, m := range v.Members() {
		keys = append(keys, m.Key)
	}
	if !reflect.DeepEqual(keys, []string{"zeta", "alpha", "list"}) {
		t.Fatalf("unexpected key order: %v", keys)
	}

	if got := v.String(); got != `{"zeta":1,"alpha":{"b":true,"a":null},"list":[1,"two",false]}` {
		t.Fatalf("round trip mismatch: %s", got)
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"not json",
		`{"a":1`,
		`{"a":1,}`,
		`[1,2`,
		`{"a":1} {"b":2}`,
		`1 2`,
		`{'a':1}`,
	}
	for _, input := range cases {
		if _, err := Parse(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestParseScalars(t *testing.T) {
	tests := []struct {
		input string
		kind  Kind
	}{
		{"null", Null},
		{" true ", Bool},
		{"-12.5e3", Number},
		{`"hello"`, String},
		{"[]", Array},
		{"{}", Object},
	}
	for _, tt := range tests {
		v, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tt.input, err)
		}
		if v.Kind() != tt.kind {
			t.Fatalf("Parse(%q) kind = %s, want %s", tt.input, v.Kind(), tt.kind)
		}
	}

	n, _ := Parse("-12.5e3")
	if f, ok := n.Number(); !ok || f != -12500 {
		t.Fatalf("unexpected number %v", f)
	}
}

func TestDuplicateKeysReplaceInPlace(t *testing.T) {
	v, err := Parse(`{"a":1,"b":2,"a":3}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if v.Len() != 2 {
		t.Fatalf("expected 2 members, got %d", v.Len())
	}
	if got := v.String(); got != `{"a":3,"b":2}` {
		t.Fatalf("unexpected encoding %s", got)
	}
}

func TestTypeName(t *testing.T) {
	tests := map[string]string{
		`"x"`:     "string",
		`1`:       "number",
		`0.5`:     "number",
		`false`:   "boolean",
		`null`:    "object",
		`[1]`:     "object",
		`{"a":1}`: "object",
	}
	for input, want := range tests {
		v, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", input, err)
		}
		if got := TypeName(v); got != want {
			t.Fatalf("TypeName(%s) = %s, want %s", input, got, want)
		}
	}
}

func TestInterfaceMatchesEncodingJSON(t *testing.T) {
	doc := `{"id":1,"name":"Ada","tags":["x",null],"nested":{"ok":true}}`
	v, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var want interface{}
	if err := json.Unmarshal([]byte(doc), &want); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(v.Interface(), want) {
		t.Fatalf("Interface() = %#v, want %#v", v.Interface(), want)
	}
}

func TestOverflowEncodesAsNull(t *testing.T) {
	v, err := Parse(`{"big":1e400}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := v.String(); got != `{"big":null}` {
		t.Fatalf("unexpected encoding %s", got)
	}
}

func TestValueInsideStruct(t *testing.T) {
	type envelope struct {
		Data Value `json:"data"`
	}
	var env envelope
	if err := json.Unmarshal([]byte(`{"data":{"b":1,"a":2}}`), &env); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	out, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `{"data":{"b":1,"a":2}}` {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestBuilders(t *testing.T) {
	v := ObjectValue(
		Member{Key: "error", Value: StringValue("Too Many Requests")},
		Member{Key: "count", Value: NumberValue(3)},
		Member{Key: "items", Value: ArrayValue(BoolValue(true), NullValue())},
	)
	if got := v.String(); got != `{"error":"Too Many Requests","count":3,"items":[true,null]}` {
		t.Fatalf("unexpected encoding %s", got)
	}
	if item, ok := v.Get("count"); !ok || TypeName(item) != "number" {
		t.Fatalf("Get(count) = %v, %v", item, ok)
	}
	if _, ok := v.Get("missing"); ok {
		t.Fatal("expected missing key")
	}
}
