// Copyright 2025 CineVision
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package taskstore persists upload task snapshots between CLI sessions.
package taskstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const (
	tasksBucket = "upload-tasks"
	openTimeout = time.Second
)

// Store is a bbolt backed key/value store of JSON encoded task snapshots.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "create task store directory")
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "open task store %s", path)
	}

	if err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(tasksBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create tasks bucket")
	}

	return &Store{db: db, path: path}, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(tasksBucket)).Put([]byte(key), data)
	})
}

// Get decodes the value stored under key into out.
func (s *Store) Get(key string, out interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket([]byte(tasksBucket)).Get([]byte(key))
		if value == nil {
			return errors.Errorf("key %s not found", key)
		}
		return json.Unmarshal(value, out)
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(tasksBucket)).Delete([]byte(key))
	})
}

// ForEach calls fn for every stored value in key order.
func (s *Store) ForEach(fn func(key string, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(tasksBucket)).ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
}

// Reset drops every stored value.
func (s *Store) Reset() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(tasksBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(tasksBucket))
		return err
	})
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}
