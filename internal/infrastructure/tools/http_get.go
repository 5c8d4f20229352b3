package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
)

// defaultMaxBodyBytes はHTTPレスポンスボディの既定上限
const defaultMaxBodyBytes = 1 << 20 // 1MiB

// NewHTTPGetTool はHTTP GETツールを作成する。
// レスポンスボディはmaxBodyBytesで打ち切られる
func NewHTTPGetTool(client *http.Client, maxBodyBytes int64) tool.Tool {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	params := []tool.Parameter{
		{Name: "url", Type: tool.ParamString, Description: "URL to fetch", Required: true},
	}

	return tool.New("http_get", "Fetch a URL over HTTP GET", tool.TypeWebOperation, params,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			url, _ := args["url"].(string)

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, fmt.Errorf("invalid url: %w", err)
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
			if err != nil {
				return nil, fmt.Errorf("failed to read response body: %w", err)
			}
			truncated := int64(len(body)) > maxBodyBytes
			if truncated {
				body = body[:maxBodyBytes]
			}

			return map[string]interface{}{
				"status_code":  resp.StatusCode,
				"content_type": resp.Header.Get("Content-Type"),
				"body":         string(body),
				"truncated":    truncated,
			}, nil
		})
}
