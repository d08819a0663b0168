// Package persistence is the non-volatile settings store: the automation
// switches packed into one byte under a fixed key.
package persistence

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	bolt "go.etcd.io/bbolt"
)

var (
	settingsBucket = []byte("settings")
	switchesKey    = []byte("switches")
)

// ErrNotFound is returned by ReadSwitches before the first write.
var ErrNotFound = errors.New("persistence: switches not stored")

type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(settingsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	log.Printf("persistence: opened %s", path)
	return &Store{db: db}, nil
}

func (s *Store) ReadSwitches() (entities.Switches, error) {
	var sw entities.Switches
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(settingsBucket).Get(switchesKey)
		if len(v) != 1 {
			return ErrNotFound
		}
		sw = entities.UnpackSwitches(v[0])
		return nil
	})
	return sw, err
}

func (s *Store) WriteSwitches(sw entities.Switches) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).Put(switchesKey, []byte{sw.Pack()})
	})
}

func (s *Store) Close() error { return s.db.Close() }
