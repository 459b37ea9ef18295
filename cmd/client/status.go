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
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"companion-bot/services/bot/statusserver"
)

// statusCmd fetches and renders the status of a running bot
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _args []string) error {
		client := resty.New()
		client.SetHostURL(clientViper.GetString(clientURLKey))
		client.SetTimeout(clientViper.GetDuration(clientTimeoutKey))

		status, err := fetchStatus(client)
		if err != nil {
			return err
		}

		renderStatus(cmd.OutOrStdout(), status)
		return nil
	},
}

func fetchStatus(client *resty.Client) (*statusserver.Status, error) {
	resp, err := client.R().
		SetResult(&statusserver.Status{}).
		Get("/status")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("status request failed with http status %d", resp.StatusCode())
	}
	return resp.Result().(*statusserver.Status), nil
}

func renderStatus(out io.Writer, status *statusserver.Status) {
	fmt.Fprintf(out, "Version:      %s\n", status.Version)
	fmt.Fprintf(out, "Started:      %s\n", status.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Uptime:       %s\n", status.Uptime)
	fmt.Fprintf(out, "Timezone:     %s\n", status.Timezone)
	if status.GroupChatID != 0 {
		fmt.Fprintf(out, "Group chat:   %d\n", status.GroupChatID)
	}
	fmt.Fprintf(out, "Asleep:       %t\n", status.Asleep)
	if status.NextCheckin != nil {
		fmt.Fprintf(out, "Next checkin: %s\n", status.NextCheckin.Format(time.RFC3339))
	}

	if len(status.RecentDeliveries) == 0 {
		fmt.Fprintln(out, "No deliveries yet")
		return
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"At", "Kind", "Chat", "Text"})
	for _, delivery := range status.RecentDeliveries {
		table.Append([]string{
			delivery.At.Format("2006-01-02 15:04"),
			string(delivery.Kind),
			fmt.Sprintf("%d", delivery.ChatID),
			delivery.Text,
		})
	}
	table.Render()
}
