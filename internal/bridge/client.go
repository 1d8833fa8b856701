package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client calls channel methods over the HTTP endpoint.
type Client struct {
	base  string
	token string
	http  *http.Client
}

func NewClient(base string, token string) *Client {
	if strings.HasPrefix(base, ":") {
		base = "127.0.0.1" + base
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{base: strings.TrimSuffix(base, "/"), token: token, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) Call(ctx context.Context, method string) (*Reply, error) {
	body, err := json.Marshal(&Call{Method: method})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/channel/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("call %s: %s", method, resp.Status)
	}
	reply := &Reply{}
	err = json.NewDecoder(resp.Body).Decode(reply)
	if err != nil {
		return nil, fmt.Errorf("call %s: decode reply: %w", method, err)
	}
	return reply, nil
}

// CallBool calls method and unwraps a boolean result, turning error and
// not-implemented replies into errors.
func (c *Client) CallBool(ctx context.Context, method string) (bool, error) {
	reply, err := c.Call(ctx, method)
	if err != nil {
		return false, err
	}
	if reply.Error != nil {
		return false, fmt.Errorf("%s: %s", reply.Error.Code, reply.Error.Message)
	}
	if reply.NotImplemented {
		return false, fmt.Errorf("%s: not implemented", method)
	}
	return reply.Bool()
}
