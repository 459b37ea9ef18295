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
	"time"

	"companion-bot/clients/telegram"
	"companion-bot/services/bot/store"
)

// nextCheckinTime returns the next HH:15 strictly after now, in now's
// location. 09:02 -> 09:15, 09:20 -> 10:15.
func nextCheckinTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 15, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(time.Hour)
	}
	return next
}

// isQuietHours reports whether the bot must stay silent, 22:00 inclusive to
// 09:00 exclusive.
func isQuietHours(t time.Time) bool {
	hour := t.Hour()
	return hour >= 22 || hour < 9
}

func partOfDay(t time.Time) string {
	hour := t.Hour()
	switch {
	case hour >= 9 && hour < 12:
		return "утро"
	case hour >= 12 && hour < 18:
		return "день"
	case hour >= 18 && hour < 22:
		return "вечер"
	default:
		return "ночь"
	}
}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "понедельник",
	time.Tuesday:   "вторник",
	time.Wednesday: "среда",
	time.Thursday:  "четверг",
	time.Friday:    "пятница",
	time.Saturday:  "суббота",
	time.Sunday:    "воскресенье",
}

// runScheduler fires the check-in at HH:15 every hour. The wake-up time is
// recomputed every iteration so a DST shift doesn't drift the alignment.
func (b *Bot) runScheduler(ctx context.Context) error {
	if b.options.GroupChatID == 0 {
		log.Info("no group chat configured, the hourly check-in is disabled")
		return nil
	}

	for {
		now := time.Now().In(b.location)
		next := nextCheckinTime(now)
		log.WithField("next_checkin", next.Format(time.RFC3339)).Debug("check-in scheduled")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		b.sendCheckin(ctx, time.Now().In(b.location))
	}
}

func (b *Bot) sendCheckin(ctx context.Context, now time.Time) {
	if isQuietHours(now) {
		log.WithField("now", now.Format(time.RFC3339)).Debug("quiet hours, check-in skipped")
		return
	}

	text := b.generate(ctx, buildCheckinPrompt(now), checkinFallback)

	_, err := b.telegram.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID: b.options.GroupChatID,
		Text:   text,
	})
	if err != nil {
		log.WithError(err).Error("unable to send the check-in message")
		return
	}

	log.WithField("chat_id", b.options.GroupChatID).Info("check-in message sent")
	b.recordDelivery(store.DeliveryCheckin, b.options.GroupChatID, text)
}
