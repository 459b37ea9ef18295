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

// Package statusserver exposes the bot's operational state over HTTP.
package statusserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"companion-bot/services/bot/store"
)

var log = logrus.WithField("component", "bot/statusserver")

// Status is the payload of GET /status.
type Status struct {
	Version          string           `json:"version"`
	StartedAt        time.Time        `json:"started_at"`
	Uptime           string           `json:"uptime"`
	Timezone         string           `json:"timezone"`
	GroupChatID      int64            `json:"group_chat_id,omitempty"`
	Asleep           bool             `json:"asleep"`
	NextCheckin      *time.Time       `json:"next_checkin,omitempty"`
	RecentDeliveries []store.Delivery `json:"recent_deliveries"`
}

// Reporter provides the current status, implemented by the bot.
type Reporter interface {
	Status() Status
}

type Server struct {
	http.Server
	reporter Reporter
}

func New(port uint, reporter Reporter) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	engine.Use(cors.New(corsConfig))

	server := &Server{
		Server: http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: engine,
		},
		reporter: reporter,
	}

	engine.GET("/health", server.health)
	engine.GET("/status", server.status)

	return server
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.reporter.Status())
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.ListenAndServe()
	}()
	log.WithField("addr", s.Addr).Info("status server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		<-errChan
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}
