package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"mxbridge/internal/domain"
)

// MatrixError is the standard error envelope returned by the homeserver.
type MatrixError struct {
	Code       string `json:"errcode"`
	Message    string `json:"error"`
	StatusCode int    `json:"-"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix: %s (%s)", e.Code, e.Message)
}

// Client is an authenticated Matrix client-server API client.
type Client struct {
	Base  string
	Token string
	HTTP  *http.Client
}

// New returns a client for the homeserver at base authenticating with
// token.
func New(base, token string) *Client {
	return &Client{
		Base:  base,
		Token: token,
		HTTP:  http.DefaultClient,
	}
}

var (
	_ domain.KeyClaimClient = (*Client)(nil)
	_ domain.KeyQueryClient = (*Client)(nil)
	_ domain.ToDeviceSender = (*Client)(nil)
)

// ClaimKeys consumes one one-time key per listed device.
func (c *Client) ClaimKeys(
	ctx context.Context,
	req domain.OneTimeKeysClaimRequest,
) (domain.OneTimeKeysClaimResponse, error) {
	var out domain.OneTimeKeysClaimResponse
	err := c.do(ctx, http.MethodPost, "/_matrix/client/v3/keys/claim", req, &out)
	return out, err
}

// QueryKeys fetches the published device key objects of the listed users.
func (c *Client) QueryKeys(
	ctx context.Context,
	req domain.DeviceKeysQueryRequest,
) (domain.DeviceKeysQueryResponse, error) {
	var out domain.DeviceKeysQueryResponse
	err := c.do(ctx, http.MethodPost, "/_matrix/client/v3/keys/query", req, &out)
	return out, err
}

// UploadKeys publishes the local device keys and/or a batch of one-time
// keys.
func (c *Client) UploadKeys(
	ctx context.Context,
	req domain.KeysUploadRequest,
) (domain.KeysUploadResponse, error) {
	var out domain.KeysUploadResponse
	err := c.do(ctx, http.MethodPost, "/_matrix/client/v3/keys/upload", req, &out)
	return out, err
}

// SendToDevice delivers per-device event content under a fresh
// transaction ID.
func (c *Client) SendToDevice(
	ctx context.Context,
	eventType domain.EventType,
	messages map[domain.UserID]map[domain.DeviceID]any,
) error {
	path := fmt.Sprintf("/_matrix/client/v3/sendToDevice/%s/%s",
		url.PathEscape(string(eventType)), newTxnID())
	body := struct {
		Messages map[domain.UserID]map[domain.DeviceID]any `json:"messages"`
	}{Messages: messages}
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// Whoami returns the user ID the access token acts as.
func (c *Client) Whoami(ctx context.Context) (domain.UserID, error) {
	var out struct {
		UserID domain.UserID `json:"user_id"`
	}
	err := c.do(ctx, http.MethodGet, "/_matrix/client/v3/account/whoami", nil, &out)
	return out.UserID, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		mxerr := &MatrixError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(mxerr); err != nil || mxerr.Code == "" {
			return fmt.Errorf("matrix: %s %s: %s", method, path, resp.Status)
		}
		return mxerr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newTxnID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return "mxbridge-" + hex.EncodeToString(b[:])
}
