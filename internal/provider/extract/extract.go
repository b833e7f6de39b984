// Package extract holds the ordered-path lookups adapters use to read
// provider payloads. Adapters own their path lists; this package only walks
// them in order and reports the first usable value.
package extract

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// callbackTaskIDPaths is where providers place the task id in webhook bodies.
var callbackTaskIDPaths = []string{
	"taskId",
	"task_id",
	"id",
	"data.taskId",
	"data.task_id",
	"data.id",
	"data.info.taskId",
}

// Valid reports whether body is well-formed JSON.
func Valid(body []byte) bool {
	return gjson.ValidBytes(body)
}

// String returns the first non-empty string or number found at paths.
func String(body []byte, paths ...string) (string, bool) {
	return firstString(gjson.ParseBytes(body), paths)
}

// URL returns the first http(s) URL found at paths.
func URL(body []byte, paths ...string) (string, bool) {
	return firstURL(gjson.ParseBytes(body), paths)
}

// NestedURL reads a JSON blob that providers embed as a string (resultJson)
// at one of blobPaths and returns the first URL found inside it at innerPaths.
// Blobs delivered as plain objects are accepted too.
func NestedURL(body []byte, blobPaths, innerPaths []string) (string, bool) {
	root := gjson.ParseBytes(body)
	for _, p := range blobPaths {
		blob := root.Get(p)
		var inner gjson.Result
		switch {
		case blob.Type == gjson.String && gjson.Valid(blob.Str):
			inner = gjson.Parse(blob.Str)
		case blob.IsObject():
			inner = blob
		default:
			continue
		}
		if u, ok := firstURL(inner, innerPaths); ok {
			return u, true
		}
	}
	return "", false
}

// Int returns the first integer found at paths. Numeric strings count.
func Int(body []byte, paths ...string) (int64, bool) {
	root := gjson.ParseBytes(body)
	for _, p := range paths {
		r := root.Get(p)
		switch r.Type {
		case gjson.Number:
			return r.Int(), true
		case gjson.String:
			s := strings.TrimSpace(r.Str)
			if s == "" {
				continue
			}
			n := gjson.Parse(s)
			if n.Type == gjson.Number {
				return n.Int(), true
			}
		}
	}
	return 0, false
}

// Bool returns the first boolean found at paths.
func Bool(body []byte, paths ...string) (bool, bool) {
	root := gjson.ParseBytes(body)
	for _, p := range paths {
		r := root.Get(p)
		if r.IsBool() {
			return r.Bool(), true
		}
	}
	return false, false
}

// CallbackTaskID returns the provider task id from a webhook body of any
// supported provider.
func CallbackTaskID(body []byte) (string, bool) {
	return String(body, callbackTaskIDPaths...)
}

// APIError reports the envelope error shared by the provider's APIs: a "code"
// other than 200 with an optional "msg".
func APIError(body []byte) (string, bool) {
	code, ok := Int(body, "code")
	if !ok || code == 200 {
		return "", false
	}
	msg, _ := String(body, "msg", "message", "error.message", "error")
	if msg == "" {
		msg = "provider returned error code"
	}
	return strconv.FormatInt(code, 10) + ": " + msg, true
}

func firstString(root gjson.Result, paths []string) (string, bool) {
	for _, p := range paths {
		r := root.Get(p)
		switch r.Type {
		case gjson.String:
			if s := strings.TrimSpace(r.Str); s != "" {
				return s, true
			}
		case gjson.Number:
			return r.Raw, true
		}
	}
	return "", false
}

func firstURL(root gjson.Result, paths []string) (string, bool) {
	for _, p := range paths {
		r := root.Get(p)
		if r.Type != gjson.String {
			continue
		}
		s := strings.TrimSpace(r.Str)
		if strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") {
			return s, true
		}
	}
	return "", false
}
