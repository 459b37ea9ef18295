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
	"fmt"
	"time"
)

// Canned texts used whenever generation fails or comes back empty.
const (
	checkinFallback    = "Максим, как у тебя дела? Чем занимаешься сейчас?"
	sarcasticFallback  = "Интересно, это ты сейчас серьёзно или опять шутишь?"
	supportiveFallback = "Звучит очень круто, продолжай в том же духе, это реально впечатляет!"
)

// buildCheckinPrompt asks for the hourly question to Максим, tuned to the
// current part of day and weekday so the wording varies.
func buildCheckinPrompt(now time.Time) string {
	return "Сгенерируй ОДИН короткий вопрос по-русски для телеграм-чата, " +
		"обращаясь к Максиму по имени. " +
		"Смысл: узнать, как у него дела и чем он сейчас занимается. " +
		"Стиль: дружелюбный, чуть-чуть шутливый, но без грубостей. " +
		"Не пиши смайлики и не используй хэштеги. " +
		"Упомяни в формулировке, что сейчас " + partOfDay(now) +
		" и " + weekdayNames[now.Weekday()] + ". " +
		"Максимум 20 слов. Только текст вопроса, без пояснений."
}

func buildSarcasticPrompt(userText string) string {
	return fmt.Sprintf(
		"Ты язвительный, но доброжелательный друг в телеграм-чате. "+
			"Ответь на сообщение короткой шутливой фразой по-русски. "+
			"Стиль: лёгкий сарказм, без оскорблений, без мата, максимум 25 слов. "+
			"Не используй смайлики и хэштеги. "+
			"Сообщение пользователя:\n\n%s\n\n"+
			"Теперь придумай один подходящий саркастический ответ. Только ответ, без пояснений.",
		userText,
	)
}

func buildSupportivePrompt(userText string) string {
	return fmt.Sprintf(
		"Ты очень поддерживающий и воодушевляющий друг в телеграм-чате. "+
			"Ответь на сообщение короткой фразой по-русски, которая поддерживает, "+
			"усиливает и хвалит собеседника. "+
			"Стиль: тёплый, мотивирующий, без пафоса, максимум 25 слов. "+
			"Не используй смайлики и хэштеги. "+
			"Сообщение пользователя:\n\n%s\n\n"+
			"Теперь придумай один подходящий поддерживающий ответ. Только ответ, без пояснений.",
		userText,
	)
}
