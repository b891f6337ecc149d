package client

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) ModuleStates(ctx context.Context) (ModuleStates, error) {
	states := ModuleStates{}
	if err := c.do(ctx, http.MethodGet, "/api/get_module_states", nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// Ping checks that the API answers an authenticated request.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Tasks().List(ctx, 1)
	return err
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
