package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// errInvalidJSON is returned by decodeBody for structurally invalid bodies
var errInvalidJSON = errors.New("invalid JSON body")

// ErrorResponse is the body of every failed relay call
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the body of every successful command
type SuccessResponse struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	_ = writeJSON(w, status, ErrorResponse{Error: msg})
}

// decodeBody parses a JSON request body into v. Only the JSON syntax is
// checked: an empty body leaves v untouched, numbers stay json.Number, and a
// value whose type does not fit its field is left for upstream to judge.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &typeErr):
			return nil
		}
		return errInvalidJSON
	}
	return nil
}

// numberArg reads a JSON number or a numeric string
func numberArg(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case float64:
		return n, true
	}
	return 0, false
}

// stringArg renders a scalar JSON value as text, "" when absent
func stringArg(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
