package hxlive

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Request describes the HTTP request a Builder renders for.
type Request struct {
	raw       *http.Request
	form      *Form
	tid       string
	evt       string
	submitted bool
}

// Form returns the submitted form fields. On page requests and on the
// initial load of a component it is empty.
func (r *Request) Form() *Form {
	return r.form
}

// Submitted reports whether the browser sent form fields with the request,
// as it does for every reload triggered by an element.
func (r *Request) Submitted() bool {
	return r.submitted
}

// TriggerID returns the id of the element whose event caused the reload.
func (r *Request) TriggerID() string {
	return r.tid
}

// TriggerEvent returns the name of the DOM event that caused the reload.
func (r *Request) TriggerEvent() string {
	return r.evt
}

// Method returns the HTTP method.
func (r *Request) Method() string {
	if r.raw == nil {
		return http.MethodGet
	}
	return r.raw.Method
}

// HTTP returns the underlying request. It is nil in Builders created outside
// a request.
func (r *Request) HTTP() *http.Request {
	return r.raw
}

// Form holds submitted fields with typed accessors.
//
// The typed accessors return the zero value and no error for a missing
// field, and an error wrapping ErrValidation when the field is present but
// does not convert.
type Form struct {
	url.Values
}

// Has reports whether the field was submitted.
func (f *Form) Has(name string) bool {
	_, ok := f.Values[name]
	return ok
}

// String returns the first value of the field.
func (f *Form) String(name string) string {
	return f.Get(name)
}

// Strings returns every value of the field.
func (f *Form) Strings(name string) []string {
	return f.Values[name]
}

// Int converts the field to a base 10 int. Leading zeros are ignored, so
// "010" is 10.
func (f *Form) Int(name string) (int, error) {
	return convert(f, name, func(v any) (int, error) {
		return cast.ToIntE(trimZeros(v.(string)))
	})
}

func trimZeros(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}
	if t := strings.TrimLeft(s, "0"); t != s {
		if t == "" {
			t = "0"
		}
		s = t
	}
	return sign + s
}

// Float converts the field to a float64.
func (f *Form) Float(name string) (float64, error) {
	return convert(f, name, cast.ToFloat64E)
}

// Bool converts the field to a bool. Checkboxes submit "on", which is
// true; an unchecked checkbox is absent, which is false.
func (f *Form) Bool(name string) (bool, error) {
	if f.Get(name) == "on" {
		return true, nil
	}
	return convert(f, name, cast.ToBoolE)
}

// Time parses the field as a date or timestamp, for example the value of a
// date or datetime-local input.
func (f *Form) Time(name string) (time.Time, error) {
	return convert(f, name, cast.ToTimeE)
}

// Duration parses the field as a duration ("1h30m"), or as nanoseconds when
// it is a bare number.
func (f *Form) Duration(name string) (time.Duration, error) {
	return convert(f, name, cast.ToDurationE)
}

func convert[T any](f *Form, name string, fn func(any) (T, error)) (T, error) {
	var zero T
	if f == nil || !f.Has(name) || f.Get(name) == "" {
		return zero, nil
	}
	v, err := fn(f.Get(name))
	if err != nil {
		return zero, fmt.Errorf("%w: field %q: %v", ErrValidation, name, err)
	}
	return v, nil
}
