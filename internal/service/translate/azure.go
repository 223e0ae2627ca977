package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// AzureConfig configures the Azure Translator text API client.
type AzureConfig struct {
	Endpoint string
	Key      string
	Region   string
}

// AzureClient implements Client against the Azure Translator v3 REST API.
type AzureClient struct {
	cfg  AzureConfig
	http *http.Client
}

func NewAzureClient(cfg AzureConfig) *AzureClient {
	return &AzureClient{
		cfg: cfg,
		// per-request deadline comes from the batch context; this is a
		// safety net for callers without one
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type translateRequest struct {
	Text string `json:"Text"`
}

type translateResponse struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

func (c *AzureClient) Translate(ctx context.Context, text, to, category string) (string, error) {
	body, err := json.Marshal([]translateRequest{{Text: text}})
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("api-version", "3.0")
	q.Set("to", to)
	if category != "" {
		q.Set("category", category)
	}
	endpoint := c.cfg.Endpoint + "/translate?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)
	if c.cfg.Region != "" {
		req.Header.Set("Ocp-Apim-Subscription-Region", c.cfg.Region)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translator returned %d: %s", resp.StatusCode, b)
	}

	var parsed []translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed) == 0 || len(parsed[0].Translations) == 0 {
		return "", fmt.Errorf("translator returned empty result for %q", to)
	}
	return parsed[0].Translations[0].Text, nil
}
