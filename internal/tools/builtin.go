package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxFetchBody caps what http_fetch returns to the model.
const maxFetchBody = 256 * 1024

// Builtins returns the tool set every agent starts with.
func Builtins() []Tool {
	return []Tool{
		clockTool(),
		fileReadTool(),
		fileWriteTool(),
		httpFetchTool(nil),
		shellTool(),
	}
}

// RegisterBuiltins adds the built-in tools to the registry.
func RegisterBuiltins(r *Registry) error {
	for _, t := range Builtins() {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func clockTool() Tool {
	return Tool{
		Name:        "clock",
		Description: "Returns the current date and time.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"timezone": {"type": "string", "description": "IANA timezone name, defaults to local"}
			}
		}`),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			now := time.Now()
			if tz, _ := args["timezone"].(string); tz != "" {
				loc, err := time.LoadLocation(tz)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone %q", tz)
				}
				now = now.In(loc)
			}
			return map[string]any{
				"time":     now.Format(time.RFC3339),
				"unix":     now.Unix(),
				"weekday":  now.Weekday().String(),
				"timezone": now.Location().String(),
			}, nil
		},
	}
}

func fileReadTool() Tool {
	return Tool{
		Name:        "file_read",
		Description: "Reads a text file and returns its content.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Path of the file to read"}
			},
			"required": ["path"]
		}`),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			return map[string]any{"path": path, "content": string(data), "bytes": len(data)}, nil
		},
	}
}

func fileWriteTool() Tool {
	return Tool{
		Name:        "file_write",
		Description: "Writes text content to a file, creating parent directories as needed.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Destination file path"},
				"content": {"type": "string", "description": "Text to write"},
				"append": {"type": "boolean", "description": "Append instead of truncate"}
			},
			"required": ["path", "content"]
		}`),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
			if appendTo, _ := args["append"].(bool); appendTo {
				f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
				if err != nil {
					return nil, err
				}
				defer f.Close()
				if _, err := f.WriteString(content); err != nil {
					return nil, err
				}
			} else if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return nil, err
			}
			return map[string]any{"path": path, "bytes": len(content)}, nil
		},
	}
}

func httpFetchTool(client *http.Client) Tool {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return Tool{
		Name:        "http_fetch",
		Description: "Fetches a URL over HTTP GET and returns status and body text.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "URL to fetch"},
				"headers": {"type": "object", "description": "Optional request headers"}
			},
			"required": ["url"]
		}`),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			url, _ := args["url"].(string)
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				return nil, fmt.Errorf("url must be http or https: %q", url)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			if headers, ok := args["headers"].(map[string]any); ok {
				for k, v := range headers {
					if s, ok := v.(string); ok {
						req.Header.Set(k, s)
					}
				}
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"status":       resp.StatusCode,
				"content_type": resp.Header.Get("Content-Type"),
				"body":         string(body),
			}, nil
		},
	}
}
