package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// SearchPath is where suggestion services expose their search operation.
const SearchPath = "/api/medicines/search"

// RemoteClient calls a suggestion service over HTTP.
type RemoteClient struct {
	endpoint string
	http     *http.Client
}

// NewRemoteClient targets baseURL + SearchPath.
func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	return &RemoteClient{
		endpoint: strings.TrimRight(strings.TrimSpace(baseURL), "/") + SearchPath,
		http:     newHTTPClient(timeout),
	}
}

func (c *RemoteClient) Suggest(ctx context.Context, req Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := gjson.GetBytes(body, "detail").String()
		if detail == "" {
			detail = gjson.GetBytes(body, "message").String()
		}
		if detail == "" {
			detail = resp.Status
		}
		return nil, fmt.Errorf("suggestion service status %d: %s", resp.StatusCode, detail)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedReply)
	}
	if !gjson.GetBytes(body, "success").Bool() {
		return nil, ErrUnsuccessful
	}

	meds, err := parseMedicines(gjson.GetBytes(body, "medicines"))
	if err != nil {
		return nil, err
	}
	return &Response{Success: true, Medicines: meds}, nil
}
