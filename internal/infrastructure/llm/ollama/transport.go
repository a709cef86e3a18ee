package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/insurance-upsell/internal/core/domain"
)

// call POSTs payload to path through the limiter and resilience executor and
// decodes the JSON answer into out.
func (c *Client) call(ctx context.Context, operation, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	err = c.executor.Execute(ctx, operation, func(callCtx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(callCtx); err != nil {
				return err
			}
		}
		return c.postJSON(callCtx, operation, path, body, out)
	}, classifyOllamaError)
	return toDomainError(operation, err)
}

func (c *Client) postJSON(ctx context.Context, operation, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(msg),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrProvider, operation, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
