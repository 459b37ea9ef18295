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
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"companion-bot/clients/telegram"
	"companion-bot/services/bot/store"
)

// shortened in tests
var pollRetryDelay = 5 * time.Second

// runPoller long polls for updates and routes them. The offset is persisted
// after a batch is dispatched, so a crash replays at most the in-flight
// batch.
func (b *Bot) runPoller(ctx context.Context) error {
	offset, err := b.store.Offset()
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := b.telegram.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warn("unable to fetch updates, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, update := range updates {
			b.handleUpdate(ctx, update)
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
		}

		if len(updates) > 0 {
			if err := b.store.SetOffset(offset); err != nil {
				return err
			}
		}
	}
}

// parseCommand extracts the command name from a "/name[@bot] args" text.
// forUs is false for commands addressed to another bot.
func (b *Bot) parseCommand(text string) (name string, isCommand bool, forUs bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false, false
	}
	name = strings.TrimPrefix(strings.Fields(text)[0], "/")
	if name == "" {
		return "", false, false
	}
	if at := strings.IndexByte(name, '@'); at >= 0 {
		mention := name[at+1:]
		name = name[:at]
		if !strings.EqualFold(mention, b.username) {
			return name, true, false
		}
	}
	return strings.ToLower(name), true, true
}

func (b *Bot) handleUpdate(ctx context.Context, update telegram.Update) {
	message := update.Message
	if message == nil || message.Text == "" {
		return
	}

	if name, isCommand, forUs := b.parseCommand(message.Text); isCommand {
		if !forUs {
			return
		}
		switch name {
		case "start":
			b.handleStart(ctx, message)
		case "chatid":
			b.reply(ctx, message, fmt.Sprintf("Chat ID for this chat: `%d`", message.Chat.ID), telegram.ParseModeMarkdown)
		case "whoami":
			if message.From == nil {
				return
			}
			b.reply(ctx, message, fmt.Sprintf("Your user id: `%d`", message.From.ID), telegram.ParseModeMarkdown)
		}
		return
	}

	switch {
	case message.Chat.IsPrivate():
		b.reply(ctx, message, "Ты написал: "+message.Text, "")
	case message.Chat.IsGroup():
		b.handleGroupMessage(ctx, message)
	}
}

func (b *Bot) handleStart(ctx context.Context, message *telegram.Message) {
	if message.Chat.IsPrivate() {
		b.reply(ctx, message,
			"Привет! Я Друг Максима 🤖\n"+
				"В группе я каждый час в :15 буду спрашивать, как у Максима дела,\n"+
				"формулировки будут разными и зависят от времени суток.\n"+
				"Ночью с 22:00 до 9:00 я молчу 😴\n"+
				"А ещё я отвечаю Максиму с лёгким сарказмом и поддерживаю другого выбранного пользователя.",
			"")
		return
	}
	b.reply(ctx, message,
		"Я отправляю вопрос Максиму каждый час в :15 с разными формулировками, "+
			"кроме ночи с 22:00 до 9:00. "+
			"Также шучу над одним пользователем и поддерживаю другого 😊",
		"")
}

// handleGroupMessage implements the persona replies: sarcasm for the target
// user, encouragement for the support user, silence for everyone else.
func (b *Bot) handleGroupMessage(ctx context.Context, message *telegram.Message) {
	if b.options.TargetChatID != 0 && message.Chat.ID != b.options.TargetChatID {
		return
	}
	if message.From == nil {
		return
	}

	log.WithFields(logrus.Fields{
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
		"user_name": message.From.DisplayName(),
	}).Debug("group message received")

	var prompt, fallback string
	var kind store.DeliveryKind
	switch {
	case b.options.TargetUserID != 0 && message.From.ID == b.options.TargetUserID:
		prompt, fallback, kind = buildSarcasticPrompt(message.Text), sarcasticFallback, store.DeliverySarcastic
	case b.options.SupportUserID != 0 && message.From.ID == b.options.SupportUserID:
		prompt, fallback, kind = buildSupportivePrompt(message.Text), supportiveFallback, store.DeliverySupportive
	default:
		return
	}

	text := b.generate(ctx, prompt, fallback)
	if !b.reply(ctx, message, text, "") {
		return
	}
	log.WithFields(logrus.Fields{
		"kind":    kind,
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("persona reply sent")
	b.recordDelivery(kind, message.Chat.ID, text)
}

// reply sends a reply to the given message; failures are logged, never
// propagated.
func (b *Bot) reply(ctx context.Context, message *telegram.Message, text string, parseMode string) bool {
	_, err := b.telegram.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:           message.Chat.ID,
		Text:             text,
		ParseMode:        parseMode,
		ReplyToMessageID: message.MessageID,
	})
	if err != nil {
		log.WithError(err).WithField("chat_id", message.Chat.ID).Error("unable to send a reply")
		return false
	}
	return true
}

// generate runs a completion and degrades to the fallback text on any error.
func (b *Bot) generate(ctx context.Context, prompt string, fallback string) string {
	text, err := b.ai.Complete(ctx, prompt)
	if err != nil {
		log.WithError(err).Warn("text generation failed, using the fallback text")
		return fallback
	}
	return text
}

func (b *Bot) recordDelivery(kind store.DeliveryKind, chatID int64, text string) {
	err := b.store.AppendDelivery(store.Delivery{
		Kind:   kind,
		ChatID: chatID,
		Text:   text,
		At:     time.Now().In(b.location),
	})
	if err != nil {
		log.WithError(err).Warn("unable to record a delivery")
	}
}
