// Copyright 2025 Companion Bot Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package openai is a minimal client for the OpenAI responses API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Client struct {
	rest  *resty.Client
	model string
}

type responseRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type responseResult struct {
	Output []outputItem `json:"output"`
	Error  *apiError    `json:"error,omitempty"`
}

type outputItem struct {
	Type    string        `json:"type"`
	Content []contentItem `json:"content"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewClient(apiKey string, model string) *Client {
	rest := resty.New()
	rest.SetHostURL(defaultBaseURL)
	rest.SetAuthToken(apiKey)
	rest.SetTimeout(60 * time.Second)

	return &Client{
		rest:  rest,
		model: model,
	}
}

// RestClient exposes the underlying resty client, mainly for tests.
func (c *Client) RestClient() *resty.Client {
	return c.rest
}

func (c *Client) Model() string {
	return c.model
}

// Complete generates a single completion for the given prompt. An empty
// generation is reported as an error so callers can fall back to a canned
// text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	result := &responseResult{}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(&responseRequest{Model: c.model, Input: prompt}).
		SetResult(result).
		SetError(result).
		Post("/responses")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		if result.Error != nil {
			return "", fmt.Errorf("openai completion failed: %s (%s)", result.Error.Message, result.Error.Type)
		}
		return "", fmt.Errorf("openai completion failed with http status %d", resp.StatusCode())
	}

	for _, output := range result.Output {
		for _, content := range output.Content {
			text := strings.TrimSpace(content.Text)
			if text != "" {
				return text, nil
			}
		}
	}

	return "", errors.New("openai returned an empty completion")
}
