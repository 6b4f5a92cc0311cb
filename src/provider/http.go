package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	kerrors "kokoro/src/errors"
)

// postJSON sends body as JSON and decodes a 2xx reply into out. Non-2xx
// replies become classified provider errors.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return kerrors.NewProviderError(provider, "generate", kerrors.ErrTransientProvider, "failed to send request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return kerrors.NewProviderError(provider, "generate", kerrors.ErrTransientProvider, "failed to read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return kerrors.HTTPProviderError(provider, "generate", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return kerrors.NewProviderError(provider, "generate", kerrors.ErrMalformedOutput, "failed to unmarshal response: %v", err)
	}
	return nil
}
