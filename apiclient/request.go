package apiclient

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// Request describes one call through the pipeline. Path is relative to the
// configured base URL and API prefix.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header

	// SkipAuthRefresh returns a 401 to the caller as is. Login and signup use
	// it, where a 401 means bad credentials rather than an expired token.
	SkipAuthRefresh bool

	// IdempotencyKey is sent as the Idempotency-Key header when set.
	IdempotencyKey string
}

// NewIdempotencyKey returns a fresh key for a mutating request. Reuse the
// same key when resubmitting the same logical operation.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

func (r *Request) op() string {
	return r.Method + " " + r.Path
}

// encode marshals the body once so the request can be sent again after a
// refresh.
func (r *Request) encode() ([]byte, error) {
	switch b := r.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(b)
	}
}

func (r *Request) build(baseURL string, payload []byte) (*http.Request, error) {
	u := baseURL + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(r.Method, u, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if payload != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if r.IdempotencyKey != "" {
		req.Header.Set(IdempotencyKeyHeader, r.IdempotencyKey)
	}
	return req, nil
}

// unwrap removes the {status: "success", data: ...} envelope. Any other body
// is the payload itself.
func unwrap(body []byte) []byte {
	var env struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return body
	}
	if env.Status == "success" && len(env.Data) > 0 {
		return env.Data
	}
	return body
}

func decode(payload []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], payload...)
		return nil
	}
	return json.Unmarshal(payload, out)
}
