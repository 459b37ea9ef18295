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

// Package bot runs the telegram companion service: an hourly AI check-in
// question to a group chat plus persona replies for two configured users.
package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"companion-bot/clients/openai"
	"companion-bot/clients/telegram"
	"companion-bot/services/bot/statusserver"
	"companion-bot/services/bot/store"
	"companion-bot/version"
)

type Options struct {
	Token         string
	GroupChatID   int64
	Timezone      string
	TargetUserID  int64
	TargetChatID  int64
	SupportUserID int64
	OpenAIAPIKey  string
	OpenAIModel   string
	StatusPort    uint
	DataFile      string
	PollTimeout   time.Duration
}

var DefaultOptions = Options{
	Timezone:      "Australia/Brisbane",
	SupportUserID: 502791142,
	OpenAIModel:   "gpt-4o-mini",
	StatusPort:    8080,
	PollTimeout:   50 * time.Second,
}

type Bot struct {
	options   Options
	location  *time.Location
	telegram  *telegram.Client
	ai        *openai.Client
	store     *store.Store
	username  string
	startedAt time.Time
}

func defaultDataFile() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("unable to resolve the home directory: %w", err)
	}
	return filepath.Join(home, ".companion-bot", "bot.db"), nil
}

// Run starts the bot and blocks until the context is cancelled or a fatal
// error occurs.
func Run(ctx context.Context, options Options) error {
	if options.Token == "" {
		return errors.New("the telegram bot token is not set")
	}

	location, err := time.LoadLocation(options.Timezone)
	if err != nil {
		return fmt.Errorf("unknown timezone %q: %w", options.Timezone, err)
	}

	dataFile := options.DataFile
	if dataFile == "" {
		dataFile, err = defaultDataFile()
		if err != nil {
			return err
		}
	}
	st, err := store.Open(dataFile)
	if err != nil {
		return err
	}
	defer st.Close()

	telegramClient := telegram.NewClient(options.Token, options.PollTimeout)
	me, err := telegramClient.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("unable to reach the telegram api: %w", err)
	}

	b := &Bot{
		options:   options,
		location:  location,
		telegram:  telegramClient,
		ai:        openai.NewClient(options.OpenAIAPIKey, options.OpenAIModel),
		store:     st,
		username:  me.Username,
		startedAt: time.Now().In(location),
	}

	log.WithFields(logrus.Fields{
		"username":        b.username,
		"timezone":        options.Timezone,
		"group_chat_id":   options.GroupChatID,
		"target_user_id":  options.TargetUserID,
		"target_chat_id":  options.TargetChatID,
		"support_user_id": options.SupportUserID,
		"model":           options.OpenAIModel,
		"first_checkin":   nextCheckinTime(b.startedAt).Format(time.RFC3339),
	}).Info("bot started")

	server := statusserver.New(options.StatusPort, b)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return b.runPoller(ctx) })
	group.Go(func() error { return b.runScheduler(ctx) })
	group.Go(func() error { return server.Run(ctx) })
	return group.Wait()
}

// Status implements statusserver.Reporter.
func (b *Bot) Status() statusserver.Status {
	now := time.Now().In(b.location)

	status := statusserver.Status{
		Version:     version.Version,
		StartedAt:   b.startedAt,
		Uptime:      now.Sub(b.startedAt).Round(time.Second).String(),
		Timezone:    b.options.Timezone,
		GroupChatID: b.options.GroupChatID,
		Asleep:      isQuietHours(now),
	}

	if b.options.GroupChatID != 0 {
		next := nextCheckinTime(now)
		status.NextCheckin = &next
	}

	deliveries, err := b.store.RecentDeliveries(10)
	if err != nil {
		log.WithError(err).Warn("unable to read the recent deliveries")
		deliveries = []store.Delivery{}
	}
	status.RecentDeliveries = deliveries

	return status
}
