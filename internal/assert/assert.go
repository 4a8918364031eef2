// Package assert checks a captured response against scenario expectations.
// Every check returns a typed error whose message carries the expected and
// actual values.
package assert

import (
	"bytes"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/abel-apply/apicheck/internal/client"
)

// Row is one line of a field table: the field name and the expected value as
// written in the scenario.
type Row struct {
	Field string
	Value string
}

// Status checks the status code.
func Status(resp *client.Response, want int) error {
	if resp.StatusCode != want {
		return &StatusMismatchError{Expected: want, Actual: resp.StatusCode}
	}
	return nil
}

// Field returns a top-level field of a JSON object body.
func Field(resp *client.Response, name string) (any, error) {
	obj, ok := resp.Object()
	if !ok {
		return nil, &FieldNotFoundError{Field: name}
	}
	v, ok := obj[name]
	if !ok {
		return nil, &FieldNotFoundError{Field: name}
	}
	return v, nil
}

// Path returns the value at a gjson path such as "users.0.id".
func Path(resp *client.Response, path string) (any, error) {
	if !resp.HasJSON() {
		return nil, &FieldNotFoundError{Field: path}
	}
	res := gjson.GetBytes(resp.Raw, path)
	if !res.Exists() {
		return nil, &FieldNotFoundError{Field: path}
	}
	return res.Value(), nil
}

// PartialMatch checks every key of the expected JSON object against the same
// key of the body, in the order the keys appear in expected. Values must have
// the same JSON type and value. Keys absent from expected are ignored.
func PartialMatch(resp *client.Response, expected string) error {
	doc, err := expectedObject(expected)
	if err != nil {
		return err
	}

	var failure error
	doc.ForEach(func(key, value gjson.Result) bool {
		failure = compareField(resp, key.String(), value.Value())
		return failure == nil
	})
	return failure
}

// ExactMatch checks that the body and expected render to the same compact
// JSON text. Object keys must appear in the same order; numbers compare by
// value, so 37 and 37.0 are equal.
func ExactMatch(resp *client.Response, expected string) error {
	if !gjson.Valid(expected) {
		return &ExpectationError{Msg: "expected body is not valid JSON"}
	}
	wantText := canonical(gjson.Parse(expected))

	if !resp.HasJSON() || !gjson.ValidBytes(resp.Raw) {
		return &BodyMismatchError{Mode: "exact", Expected: wantText, Actual: string(resp.Raw)}
	}
	gotText := canonical(gjson.ParseBytes(resp.Raw))
	if gotText != wantText {
		return &BodyMismatchError{Mode: "exact", Expected: wantText, Actual: gotText}
	}
	return nil
}

// Fields checks each row against the body's top-level fields. A value that
// parses as a number is compared as a number, anything else as a string.
func Fields(resp *client.Response, rows []Row) error {
	for _, row := range rows {
		if err := compareField(resp, row.Field, Coerce(row.Value)); err != nil {
			return err
		}
	}
	return nil
}

// Coerce converts table text to the value it is compared as: a float64 when
// the trimmed text is a finite number, the text itself otherwise.
func Coerce(text string) any {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return text
	}
	return n
}

// Header checks a response header value.
func Header(resp *client.Response, name, want string) error {
	got := resp.Header.Get(name)
	if got != want {
		return &HeaderMismatchError{Header: name, Expected: want, Actual: got}
	}
	return nil
}

// BodyContains checks that the raw body contains text.
func BodyContains(resp *client.Response, text string) error {
	if !bytes.Contains(resp.Raw, []byte(text)) {
		return &BodyMismatchError{Mode: "contains", Expected: text, Actual: truncate(string(resp.Raw), 512)}
	}
	return nil
}

// ResponseTime checks that the exchange took less than limit.
func ResponseTime(resp *client.Response, limit time.Duration) error {
	if !client.WithinLimit(resp.Duration, limit) {
		return &client.ResponseTimeError{
			Method:  resp.Method,
			URL:     resp.URL,
			Limit:   limit,
			Elapsed: resp.Duration,
		}
	}
	return nil
}

func compareField(resp *client.Response, name string, want any) error {
	got, err := Field(resp, name)
	if err != nil {
		return err
	}
	if !strictEqual(got, want) {
		return &FieldMismatchError{Field: name, Expected: want, Actual: got}
	}
	return nil
}

// strictEqual compares decoded JSON values. Numbers never equal strings and
// objects or arrays compare by content.
func strictEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func expectedObject(expected string) (gjson.Result, error) {
	if !gjson.Valid(expected) {
		return gjson.Result{}, &ExpectationError{Msg: "expected body is not valid JSON"}
	}
	doc := gjson.Parse(expected)
	if !doc.IsObject() {
		return gjson.Result{}, &ExpectationError{Msg: "expected body must be a JSON object"}
	}
	return doc, nil
}

// canonical renders r as compact JSON in document order.
func canonical(r gjson.Result) string {
	var b strings.Builder
	writeCanonical(&b, r)
	return b.String()
}

func writeCanonical(b *strings.Builder, r gjson.Result) {
	switch {
	case r.IsObject():
		b.WriteByte('{')
		n := 0
		r.ForEach(func(key, value gjson.Result) bool {
			if n > 0 {
				b.WriteByte(',')
			}
			n++
			writeString(b, key.String())
			b.WriteByte(':')
			writeCanonical(b, value)
			return true
		})
		b.WriteByte('}')
		return
	case r.IsArray():
		b.WriteByte('[')
		for i, v := range r.Array() {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, v)
		}
		b.WriteByte(']')
		return
	}

	switch r.Type {
	case gjson.String:
		writeString(b, r.String())
	case gjson.Number:
		b.WriteString(strconv.FormatFloat(r.Num, 'g', -1, 64))
	case gjson.True:
		b.WriteString("true")
	case gjson.False:
		b.WriteString("false")
	default:
		b.WriteString("null")
	}
}

func writeString(b *strings.Builder, s string) {
	data, _ := json.Marshal(s)
	b.Write(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
