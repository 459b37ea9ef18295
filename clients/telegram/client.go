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

// Package telegram implements the subset of the Telegram bot API the
// companion bot relies on: getMe, long polling through getUpdates and
// sendMessage.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultAPIBaseURL = "https://api.telegram.org"

// Client is a Telegram bot API client for a single bot token.
type Client struct {
	rest        *resty.Client
	pollTimeout time.Duration
}

// envelope is the response wrapper common to every bot API method.
type envelope struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
}

func (e envelope) asError(method string, httpStatus int) error {
	if e.Description != "" {
		return fmt.Errorf("telegram %s failed: %s (error code %d)", method, e.Description, e.ErrorCode)
	}
	return fmt.Errorf("telegram %s failed with http status %d", method, httpStatus)
}

func NewClient(token string, pollTimeout time.Duration) *Client {
	rest := resty.New()
	rest.SetHostURL(fmt.Sprintf("%s/bot%s", defaultAPIBaseURL, token))
	// The http timeout needs to outlast the server-side long poll
	rest.SetTimeout(pollTimeout + 10*time.Second)

	return &Client{
		rest:        rest,
		pollTimeout: pollTimeout,
	}
}

// RestClient exposes the underlying resty client, mainly for tests.
func (c *Client) RestClient() *resty.Client {
	return c.rest
}

// GetMe validates the token and returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	result := &struct {
		envelope
		Result *User `json:"result"`
	}{}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		Get("/getMe")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK || !result.OK || result.Result == nil {
		return nil, result.asError("getMe", resp.StatusCode())
	}

	return result.Result, nil
}

// GetUpdates long polls for updates starting at the given offset. It only
// subscribes to message updates. An empty slice means the poll timed out
// without news, which is the normal idle case.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	result := &struct {
		envelope
		Result []Update `json:"result"`
	}{}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"offset":          strconv.FormatInt(offset, 10),
			"timeout":         strconv.Itoa(int(c.pollTimeout / time.Second)),
			"allowed_updates": `["message"]`,
		}).
		SetResult(result).
		Get("/getUpdates")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK || !result.OK {
		return nil, result.asError("getUpdates", resp.StatusCode())
	}

	return result.Result, nil
}

// SendMessage sends a text message and returns the sent message.
func (c *Client) SendMessage(ctx context.Context, request SendMessageRequest) (*Message, error) {
	result := &struct {
		envelope
		Result *Message `json:"result"`
	}{}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(&request).
		SetResult(result).
		Post("/sendMessage")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK || !result.OK || result.Result == nil {
		return nil, result.asError("sendMessage", resp.StatusCode())
	}

	return result.Result, nil
}
