package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GraphQL posts a query to the GraphQL endpoint through the same pipeline as
// REST calls and decodes data into out. A response carrying errors is a
// *RequestError with the first error's message.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]any, out any) error {
	r := &Request{
		Method: http.MethodPost,
		Path:   c.endpoints.GraphQL,
		Body:   graphQLRequest{Query: query, Variables: variables},
	}
	var resp graphQLResponse
	if err := c.Do(ctx, r, &resp); err != nil {
		return err
	}
	if len(resp.Errors) > 0 {
		msg := resp.Errors[0].Message
		if msg == "" {
			msg = "graphql request failed"
		}
		return &RequestError{Op: r.op(), StatusCode: http.StatusOK, Message: msg}
	}
	return decode(resp.Data, out)
}
