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

package bot

import (
	"context"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-bot/clients/openai"
	"companion-bot/clients/telegram"
	"companion-bot/services/bot/store"
)

const testToken = "123456:TESTTOKEN"

func newTestBot(t *testing.T, options Options) *Bot {
	if options.Timezone == "" {
		options.Timezone = "UTC"
	}
	location, err := time.LoadLocation(options.Timezone)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	telegramClient := telegram.NewClient(testToken, time.Second)
	aiClient := openai.NewClient("sk-test", "gpt-4o-mini")
	httpmock.ActivateNonDefault(telegramClient.RestClient().GetClient())
	httpmock.ActivateNonDefault(aiClient.RestClient().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	return &Bot{
		options:   options,
		location:  location,
		telegram:  telegramClient,
		ai:        aiClient,
		store:     st,
		username:  "companion_bot",
		startedAt: time.Now().In(location),
	}
}

type sentMessage struct {
	ChatID           int64  `json:"chat_id"`
	Text             string `json:"text"`
	ParseMode        string `json:"parse_mode"`
	ReplyToMessageID int64  `json:"reply_to_message_id"`
}

func captureSentMessages(t *testing.T, sent *[]sentMessage) {
	httpmock.RegisterResponder("POST", "https://api.telegram.org/bot"+testToken+"/sendMessage",
		func(req *http.Request) (*http.Response, error) {
			body, err := ioutil.ReadAll(req.Body)
			require.NoError(t, err)
			message := sentMessage{}
			require.NoError(t, json.Unmarshal(body, &message))
			*sent = append(*sent, message)
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"ok": true,
				"result": map[string]interface{}{
					"message_id": 99,
					"chat":       map[string]interface{}{"id": message.ChatID, "type": "supergroup"},
					"text":       message.Text,
				},
			})
		},
	)
}

func mockCompletion(text string) {
	httpmock.RegisterResponder("POST", "https://api.openai.com/v1/responses",
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"output": []map[string]interface{}{
					{"content": []map[string]interface{}{{"type": "output_text", "text": text}}},
				},
			})
		},
	)
}

func mockCompletionFailure() {
	httpmock.RegisterResponder("POST", "https://api.openai.com/v1/responses",
		func(req *http.Request) (*http.Response, error) {
			return httpmock.NewJsonResponse(500, map[string]interface{}{
				"error": map[string]interface{}{"message": "overloaded", "type": "server_error"},
			})
		},
	)
}

func groupMessage(userID int64, chatID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: 10,
			From:      &telegram.User{ID: userID, FirstName: "Максим"},
			Chat:      telegram.Chat{ID: chatID, Type: telegram.ChatTypeSupergroup},
			Text:      text,
		},
	}
}

func privateMessage(userID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: 10,
			From:      &telegram.User{ID: userID, FirstName: "Максим"},
			Chat:      telegram.Chat{ID: userID, Type: telegram.ChatTypePrivate},
			Text:      text,
		},
	}
}

func TestParseCommand(t *testing.T) {
	b := newTestBot(t, DefaultOptions)

	var tests = []struct {
		text      string
		name      string
		isCommand bool
		forUs     bool
	}{
		{"/start", "start", true, true},
		{"/START", "start", true, true},
		{"/chatid extra args", "chatid", true, true},
		{"/start@companion_bot", "start", true, true},
		{"/start@Companion_Bot", "start", true, true},
		{"/start@other_bot", "start", true, false},
		{"привет", "", false, false},
		{"/", "", false, false},
		{"start", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, isCommand, forUs := b.parseCommand(tt.text)
			assert.Equal(t, tt.isCommand, isCommand)
			assert.Equal(t, tt.forUs, forUs)
			if tt.forUs {
				assert.Equal(t, tt.name, name)
			}
		})
	}
}

func TestStartCommand(t *testing.T) {
	b := newTestBot(t, DefaultOptions)
	sent := []sentMessage{}
	captureSentMessages(t, &sent)

	b.handleUpdate(context.Background(), privateMessage(1001, "/start"))
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Я Друг Максима")
	assert.Equal(t, int64(10), sent[0].ReplyToMessageID)

	b.handleUpdate(context.Background(), groupMessage(1001, -100200, "/start"))
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Text, "каждый час в :15")
	assert.NotEqual(t, sent[0].Text, sent[1].Text)
}

func TestChatIDCommand(t *testing.T) {
	b := newTestBot(t, DefaultOptions)
	sent := []sentMessage{}
	captureSentMessages(t, &sent)

	b.handleUpdate(context.Background(), groupMessage(1001, -100200, "/chatid"))

	require.Len(t, sent, 1)
	assert.Equal(t, "Chat ID for this chat: `-100200`", sent[0].Text)
	assert.Equal(t, telegram.ParseModeMarkdown, sent[0].ParseMode)
}

func TestWhoamiCommand(t *testing.T) {
	b := newTestBot(t, DefaultOptions)
	sent := []sentMessage{}
	captureSentMessages(t, &sent)

	b.handleUpdate(context.Background(), privateMessage(1001, "/whoami"))
	require.Len(t, sent, 1)
	assert.Equal(t, "Your user id: `1001`", sent[0].Text)
	assert.Equal(t, telegram.ParseModeMarkdown, sent[0].ParseMode)

	// no sender, no reply
	update := privateMessage(1001, "/whoami")
	update.Message.From = nil
	b.handleUpdate(context.Background(), update)
	assert.Len(t, sent, 1)
}

func TestPrivateEcho(t *testing.T) {
	b := newTestBot(t, DefaultOptions)
	sent := []sentMessage{}
	captureSentMessages(t, &sent)

	b.handleUpdate(context.Background(), privateMessage(1001, "как дела?"))

	require.Len(t, sent, 1)
	assert.Equal(t, "Ты написал: как дела?", sent[0].Text)
}

func TestGroupMessageFromBystanderIsIgnored(t *testing.T) {
	options := DefaultOptions
	options.TargetUserID = 1001
	options.SupportUserID = 2002
	b := newTestBot(t, options)
	sent := []sentMessage{}
	captureSentMessages(t, &sent)

	b.handleUpdate(context.Background(), groupMessage(3003, -100200, "а меня заметят?"))

	assert.Empty(t, sent)
}

func TestSarcasticReply(t *testing.T) {
	options := DefaultOptions
	options.TargetUserID = 1001
	options.TargetChatID = -100200
	b := newTestBot(t, options)
	sent := []sentMessage{}
	captureSentMessages(t, &sent)
	mockCompletion("Ну конечно, опять ты за своё.")

	b.handleUpdate(context.Background(), groupMessage(1001, -100200, "я сегодня рано встал"))

	require.Len(t, sent, 1)
	assert.Equal(t, "Ну конечно, опять ты за своё.", sent[0].Text)
	assert.Equal(t, int64(10), sent[0].ReplyToMessageID)

	deliveries, err := b.store.RecentDeliveries(10)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, store.DeliverySarcastic, deliveries[0].Kind)
}

func TestSupportiveReply(t *testing.T) {
	options := DefaultOptions
	options.SupportUserID = 2002
	b := newTestBot(t, options)
	sent := []sentMessage{}
	captureSentMessages(t, &sent)
	mockCompletion("Это отличный результат, горжусь тобой!")

	b.handleUpdate(context.Background(), groupMessage(2002, -100200, "закончил большой проект"))

	require.Len(t, sent, 1)
	assert.Equal(t, "Это отличный результат, горжусь тобой!", sent[0].Text)

	deliveries, err := b.store.RecentDeliveries(10)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, store.DeliverySupportive, deliveries[0].Kind)
}

func TestReplyFallsBackWhenGenerationFails(t *testing.T) {
	options := DefaultOptions
	options.TargetUserID = 1001
	b := newTestBot(t, options)
	sent := []sentMessage{}
	captureSentMessages(t, &sent)
	mockCompletionFailure()

	b.handleUpdate(context.Background(), groupMessage(1001, -100200, "я сегодня рано встал"))

	require.Len(t, sent, 1)
	assert.Equal(t, sarcasticFallback, sent[0].Text)
}

func TestGroupMessageOutsideTargetChatIsIgnored(t *testing.T) {
	options := DefaultOptions
	options.TargetUserID = 1001
	options.TargetChatID = -100200
	b := newTestBot(t, options)
	sent := []sentMessage{}
	captureSentMessages(t, &sent)

	b.handleUpdate(context.Background(), groupMessage(1001, -999999, "я сегодня рано встал"))

	assert.Empty(t, sent)
}

func TestRunPollerConfirmsOffsetAfterDispatch(t *testing.T) {
	b := newTestBot(t, DefaultOptions)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the offset must not be persisted while the batch is still dispatching
	offsetDuringDispatch := int64(-1)
	httpmock.RegisterResponder("POST", "https://api.telegram.org/bot"+testToken+"/sendMessage",
		func(req *http.Request) (*http.Response, error) {
			if offsetDuringDispatch < 0 {
				offset, err := b.store.Offset()
				require.NoError(t, err)
				offsetDuringDispatch = offset
			}
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"ok": true,
				"result": map[string]interface{}{
					"message_id": 99,
					"chat":       map[string]interface{}{"id": 1001, "type": "private"},
					"text":       "…",
				},
			})
		},
	)

	offsets := []string{}
	httpmock.RegisterResponder("GET", "https://api.telegram.org/bot"+testToken+"/getUpdates",
		func(req *http.Request) (*http.Response, error) {
			offsets = append(offsets, req.URL.Query().Get("offset"))
			if len(offsets) == 1 {
				return httpmock.NewJsonResponse(200, map[string]interface{}{
					"ok": true,
					"result": []map[string]interface{}{
						{
							"update_id": 120,
							"message": map[string]interface{}{
								"message_id": 10,
								"from":       map[string]interface{}{"id": 1001, "first_name": "Максим"},
								"chat":       map[string]interface{}{"id": 1001, "type": "private"},
								"text":       "привет",
							},
						},
						{
							"update_id": 121,
							"message": map[string]interface{}{
								"message_id": 11,
								"from":       map[string]interface{}{"id": 1001, "first_name": "Максим"},
								"chat":       map[string]interface{}{"id": 1001, "type": "private"},
								"text":       "как дела?",
							},
						},
					},
				})
			}
			cancel()
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"ok":     true,
				"result": []interface{}{},
			})
		},
	)

	err := b.runPoller(ctx)
	assert.Equal(t, context.Canceled, err)

	require.GreaterOrEqual(t, len(offsets), 2)
	assert.Equal(t, "0", offsets[0])
	// the next poll asks for last-seen+1
	assert.Equal(t, "122", offsets[1])
	assert.Equal(t, int64(0), offsetDuringDispatch)

	offset, err := b.store.Offset()
	require.NoError(t, err)
	assert.Equal(t, int64(122), offset)
}

func TestRunPollerRetriesAfterPollFailure(t *testing.T) {
	restoreDelay := pollRetryDelay
	pollRetryDelay = 10 * time.Millisecond
	defer func() { pollRetryDelay = restoreDelay }()

	b := newTestBot(t, DefaultOptions)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	httpmock.RegisterResponder("GET", "https://api.telegram.org/bot"+testToken+"/getUpdates",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection reset by peer")
			}
			cancel()
			return httpmock.NewJsonResponse(200, map[string]interface{}{
				"ok":     true,
				"result": []interface{}{},
			})
		},
	)

	err := b.runPoller(ctx)
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 2, calls)

	// nothing was dispatched, so nothing was confirmed
	offset, err := b.store.Offset()
	require.NoError(t, err)
	assert.Equal(t, int64(0), offset)
}

func TestGroupTextIsNotEchoed(t *testing.T) {
	b := newTestBot(t, DefaultOptions)
	sent := []sentMessage{}
	captureSentMessages(t, &sent)

	// support user id left at default, sender doesn't match anyone tracked
	b.handleUpdate(context.Background(), groupMessage(777, -100200, "просто сообщение"))

	assert.Empty(t, sent)
}
