package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vk/ensembleeval/internal/snapshot"
)

// FetchSnapshot reads the snapshot of iteration iter from the aggregator at
// baseURL. A ws:// or wss:// base is mapped to http:// or https://.
func FetchSnapshot(ctx context.Context, hc *http.Client, baseURL string, iter int) (*snapshot.Snapshot, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	u, err := endpointURL(baseURL, "/snapshot", iter, false)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetching snapshot: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var snap snapshot.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, nil
}

// endpointURL resolves path on the aggregator at baseURL for iteration iter.
// The scheme is mapped to ws(s) when ws is set and to http(s) otherwise.
func endpointURL(baseURL, path string, iter int, ws bool) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid aggregator url %q: %w", baseURL, err)
	}
	secure := false
	switch u.Scheme {
	case "ws", "http":
	case "wss", "https":
		secure = true
	default:
		return "", fmt.Errorf("invalid aggregator url %q: unsupported scheme", baseURL)
	}
	switch {
	case ws && secure:
		u.Scheme = "wss"
	case ws:
		u.Scheme = "ws"
	case secure:
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = url.Values{"iter": []string{strconv.Itoa(iter)}}.Encode()
	return u.String(), nil
}
