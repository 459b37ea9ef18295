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

// Package store persists the bot state between restarts: the last confirmed
// update offset and a log of everything the bot sent.
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

type DeliveryKind string

const (
	DeliveryCheckin    DeliveryKind = "checkin"
	DeliverySarcastic  DeliveryKind = "sarcastic"
	DeliverySupportive DeliveryKind = "supportive"
)

// Delivery is one message the bot sent.
type Delivery struct {
	Kind   DeliveryKind `json:"kind"`
	ChatID int64        `json:"chat_id"`
	Text   string       `json:"text"`
	At     time.Time    `json:"at"`
}

type Store struct {
	db *bolt.DB
}

// Bucket structure is
//	state      > update_offset > {uint64}
//	deliveries > {seq}         > {gob(Delivery)}

var (
	stateBucketName      = []byte("state")
	deliveriesBucketName = []byte("deliveries")
	offsetKey            = []byte("update_offset")
)

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("unable to create the data directory for %q: %w", path, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("unable to open the state file %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(stateBucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(deliveriesBucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to initialize the state file %q: %w", path, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Offset returns the last persisted update offset, 0 for a fresh store.
func (s *Store) Offset() (int64, error) {
	var offset int64
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(stateBucketName).Get(offsetKey)
		if value == nil {
			return nil
		}
		if len(value) != 8 {
			return fmt.Errorf("corrupted update offset of %d bytes", len(value))
		}
		offset = int64(binary.BigEndian.Uint64(value))
		return nil
	})
	return offset, err
}

func (s *Store) SetOffset(offset int64) error {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, uint64(offset))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucketName).Put(offsetKey, value)
	})
}

func serializeSeq(seq uint64) []byte {
	// Fixed-width hex keeps the bucket iteration in insertion order
	return []byte(fmt.Sprintf("%016x", seq))
}

func serializeDelivery(delivery Delivery) ([]byte, error) {
	buffer := &bytes.Buffer{}
	if err := gob.NewEncoder(buffer).Encode(delivery); err != nil {
		return nil, fmt.Errorf("unable to serialize the delivery: %w", err)
	}
	return buffer.Bytes(), nil
}

func deserializeDelivery(value []byte) (Delivery, error) {
	delivery := Delivery{}
	if err := gob.NewDecoder(bytes.NewReader(value)).Decode(&delivery); err != nil {
		return Delivery{}, fmt.Errorf("unable to deserialize a delivery: %w", err)
	}
	return delivery, nil
}

func (s *Store) AppendDelivery(delivery Delivery) error {
	value, err := serializeDelivery(delivery)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(deliveriesBucketName)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		return bucket.Put(serializeSeq(seq), value)
	})
}

// RecentDeliveries returns up to n deliveries, newest first.
func (s *Store) RecentDeliveries(n int) ([]Delivery, error) {
	deliveries := []Delivery{}
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(deliveriesBucketName).Cursor()
		for key, value := cursor.Last(); key != nil && len(deliveries) < n; key, value = cursor.Prev() {
			delivery, err := deserializeDelivery(value)
			if err != nil {
				return err
			}
			deliveries = append(deliveries, delivery)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}
