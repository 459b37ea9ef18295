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

package client

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// clientViper represents the configuration of the `companion-bot client` command
var clientViper = viper.New()

const (
	clientURLKey         = "url"
	clientTimeoutKey     = "timeout"
	defaultClientURL     = "http://localhost:8080"
	defaultClientTimeout = 30 * time.Second
)

// ClientCmd represents the `companion-bot client` command
var ClientCmd = &cobra.Command{
	Use:   "client",
	Short: "Query a running companion bot",
	Args:  cobra.NoArgs,
}

func init() {
	clientViper.SetDefault(clientURLKey, defaultClientURL)
	_ = clientViper.BindEnv(clientURLKey, "BOT_STATUS_URL")
	ClientCmd.PersistentFlags().String(
		clientURLKey,
		clientViper.GetString(clientURLKey),
		"Base url of the bot's status server",
	)

	clientViper.SetDefault(clientTimeoutKey, defaultClientTimeout)
	_ = clientViper.BindEnv(clientTimeoutKey, "BOT_CLIENT_TIMEOUT")
	ClientCmd.PersistentFlags().Duration(
		clientTimeoutKey,
		clientViper.GetDuration(clientTimeoutKey),
		"Timeout for the operation",
	)

	_ = clientViper.BindPFlags(ClientCmd.PersistentFlags())

	ClientCmd.AddCommand(statusCmd)
}
