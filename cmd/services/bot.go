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

package services

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"companion-bot/services/bot"
	"companion-bot/version"
)

// botViper represents the configuration of the bot command
var botViper = viper.New()

const botTokenKey = "token"
const botTokenEnv = "BOT_TOKEN"
const botGroupChatIDKey = "group_chat_id"
const botGroupChatIDEnv = "GROUP_CHAT_ID"
const botTimezoneKey = "timezone"
const botTimezoneEnv = "BOT_TZ"
const botTargetUserIDKey = "target_user_id"
const botTargetUserIDEnv = "TARGET_USER_ID"
const botTargetChatIDKey = "target_chat_id"
const botTargetChatIDEnv = "TARGET_CHAT_ID"
const botSupportUserIDKey = "support_user_id"
const botSupportUserIDEnv = "SUPPORT_USER_ID"
const botOpenAIModelKey = "openai_model"
const botOpenAIModelEnv = "OPENAI_MODEL"
const botOpenAIAPIKeyKey = "openai_api_key"
const botOpenAIAPIKeyEnv = "OPENAI_API_KEY"
const botStatusPortKey = "status_port"
const botStatusPortEnv = "BOT_STATUS_PORT"
const botDataFileKey = "data_file"
const botDataFileEnv = "BOT_DATA_FILE"
const botPollTimeoutKey = "poll_timeout"
const botPollTimeoutEnv = "BOT_POLL_TIMEOUT"

// botCmd represents the bot service
var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the companion bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _args []string) error {
		err := configureLog(servicesViper)
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"version": version.Version,
			"hash":    version.Hash,
		}).Info("starting the companion bot service")

		options := bot.Options{
			Token:         botViper.GetString(botTokenKey),
			GroupChatID:   botViper.GetInt64(botGroupChatIDKey),
			Timezone:      botViper.GetString(botTimezoneKey),
			TargetUserID:  botViper.GetInt64(botTargetUserIDKey),
			TargetChatID:  botViper.GetInt64(botTargetChatIDKey),
			SupportUserID: botViper.GetInt64(botSupportUserIDKey),
			OpenAIModel:   botViper.GetString(botOpenAIModelKey),
			OpenAIAPIKey:  botViper.GetString(botOpenAIAPIKeyKey),
			StatusPort:    botViper.GetUint(botStatusPortKey),
			DataFile:      botViper.GetString(botDataFileKey),
			PollTimeout:   botViper.GetDuration(botPollTimeoutKey),
		}

		ctx := contextWithUserTermination(context.Background())

		err = bot.Run(ctx, options)
		if err != nil {
			if err == context.Canceled {
				log.Info("interrupted by user")
				return nil
			}
			return err
		}
		return nil
	},
}

func init() {
	botViper.SetDefault(botTokenKey, bot.DefaultOptions.Token)
	_ = botViper.BindEnv(botTokenKey, botTokenEnv)
	botCmd.Flags().String(
		botTokenKey,
		botViper.GetString(botTokenKey),
		"Telegram bot token",
	)

	botViper.SetDefault(botGroupChatIDKey, bot.DefaultOptions.GroupChatID)
	_ = botViper.BindEnv(botGroupChatIDKey, botGroupChatIDEnv)
	botCmd.Flags().Int64(
		botGroupChatIDKey,
		botViper.GetInt64(botGroupChatIDKey),
		"Group chat the hourly check-in is sent to",
	)

	botViper.SetDefault(botTimezoneKey, bot.DefaultOptions.Timezone)
	_ = botViper.BindEnv(botTimezoneKey, botTimezoneEnv)
	botCmd.Flags().String(
		botTimezoneKey,
		botViper.GetString(botTimezoneKey),
		"IANA timezone used for scheduling and quiet hours",
	)

	botViper.SetDefault(botTargetUserIDKey, bot.DefaultOptions.TargetUserID)
	_ = botViper.BindEnv(botTargetUserIDKey, botTargetUserIDEnv)
	botCmd.Flags().Int64(
		botTargetUserIDKey,
		botViper.GetInt64(botTargetUserIDKey),
		"User receiving the sarcastic replies",
	)

	botViper.SetDefault(botTargetChatIDKey, bot.DefaultOptions.TargetChatID)
	_ = botViper.BindEnv(botTargetChatIDKey, botTargetChatIDEnv)
	botCmd.Flags().Int64(
		botTargetChatIDKey,
		botViper.GetInt64(botTargetChatIDKey),
		"Restrict the persona replies to this chat",
	)

	botViper.SetDefault(botSupportUserIDKey, bot.DefaultOptions.SupportUserID)
	_ = botViper.BindEnv(botSupportUserIDKey, botSupportUserIDEnv)
	botCmd.Flags().Int64(
		botSupportUserIDKey,
		botViper.GetInt64(botSupportUserIDKey),
		"User receiving the supportive replies",
	)

	botViper.SetDefault(botOpenAIModelKey, bot.DefaultOptions.OpenAIModel)
	_ = botViper.BindEnv(botOpenAIModelKey, botOpenAIModelEnv)
	botCmd.Flags().String(
		botOpenAIModelKey,
		botViper.GetString(botOpenAIModelKey),
		"OpenAI model used for text generation",
	)

	botViper.SetDefault(botOpenAIAPIKeyKey, bot.DefaultOptions.OpenAIAPIKey)
	_ = botViper.BindEnv(botOpenAIAPIKeyKey, botOpenAIAPIKeyEnv)
	botCmd.Flags().String(
		botOpenAIAPIKeyKey,
		botViper.GetString(botOpenAIAPIKeyKey),
		"OpenAI API key",
	)

	botViper.SetDefault(botStatusPortKey, bot.DefaultOptions.StatusPort)
	_ = botViper.BindEnv(botStatusPortKey, botStatusPortEnv)
	botCmd.Flags().Uint(
		botStatusPortKey,
		botViper.GetUint(botStatusPortKey),
		"The http port the status server listens on",
	)

	botViper.SetDefault(botDataFileKey, bot.DefaultOptions.DataFile)
	_ = botViper.BindEnv(botDataFileKey, botDataFileEnv)
	botCmd.Flags().String(
		botDataFileKey,
		botViper.GetString(botDataFileKey),
		"State file path (default ~/.companion-bot/bot.db)",
	)

	botViper.SetDefault(botPollTimeoutKey, bot.DefaultOptions.PollTimeout)
	_ = botViper.BindEnv(botPollTimeoutKey, botPollTimeoutEnv)
	botCmd.Flags().Duration(
		botPollTimeoutKey,
		botViper.GetDuration(botPollTimeoutKey),
		"Telegram long poll timeout",
	)

	// Don't sort alphabetically, keep insertion order
	botCmd.Flags().SortFlags = false

	// Bind "cobra" flags defined in the CLI with viper
	_ = botViper.BindPFlags(botCmd.Flags())
}
