package credentials

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/muurk/wifimgr/internal/wifi"
)

var (
	wifiBucket    = []byte("wifi")
	stationKey    = []byte("station")
	paramsKey     = []byte("params")
	slotKeyPrefix = "slot"
)

// BoltStore keeps the slots in a bbolt database, one JSON value per key.
type BoltStore struct {
	db   *bbolt.DB
	path string
}

var (
	_ Store      = (*BoltStore)(nil)
	_ ParamStore = (*BoltStore)(nil)
)

// OpenBoltStore opens or creates the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, NewIOError("failed to open credential database", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(wifiBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, NewIOError("failed to create bucket", path, err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Close closes the database
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func slotKey(index int) []byte {
	return []byte(fmt.Sprintf("%s%d", slotKeyPrefix, index))
}

func (b *BoltStore) LoadSlot(index int) (wifi.Credential, error) {
	if err := checkSlot(index); err != nil {
		return wifi.Credential{}, err
	}
	var c wifi.Credential
	if _, err := b.getJSON(slotKey(index), &c); err != nil {
		return wifi.Credential{}, err
	}
	return wifi.NewCredential(c.SSID, c.Password), nil
}

func (b *BoltStore) SaveSlot(index int, c wifi.Credential) error {
	if err := checkSlot(index); err != nil {
		return err
	}
	return b.setJSON(slotKey(index), wifi.NewCredential(c.SSID, c.Password))
}

func (b *BoltStore) LoadStaticIPConfig() (wifi.StationIPConfig, bool, error) {
	var cfg wifi.StationIPConfig
	found, err := b.getJSON(stationKey, &cfg)
	return cfg, found, err
}

func (b *BoltStore) SaveStaticIPConfig(cfg wifi.StationIPConfig) error {
	return b.setJSON(stationKey, cfg)
}

func (b *BoltStore) LoadParams() (map[string]string, error) {
	values := make(map[string]string)
	if _, err := b.getJSON(paramsKey, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (b *BoltStore) SaveParams(values map[string]string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(wifiBucket)

		merged := make(map[string]string)
		if raw := bucket.Get(paramsKey); raw != nil {
			if err := json.Unmarshal(raw, &merged); err != nil {
				return NewCorruptError("failed to decode params", b.path, err)
			}
		}
		for k, v := range values {
			merged[k] = v
		}

		payload, err := json.Marshal(merged)
		if err != nil {
			return NewIOError("failed to encode params", b.path, err)
		}
		return bucket.Put(paramsKey, payload)
	})
}

// Reset drops and recreates the bucket in one transaction.
func (b *BoltStore) Reset() error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(wifiBucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(wifiBucket)
		return err
	})
	if err != nil {
		return NewIOError("failed to reset credential database", b.path, err)
	}
	return nil
}

func (b *BoltStore) setJSON(key []byte, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return NewIOError("failed to encode value", b.path, err)
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(wifiBucket)
		if err != nil {
			return err
		}
		return bucket.Put(key, payload)
	})
	if err != nil {
		return NewIOError(fmt.Sprintf("failed to write %s", key), b.path, err)
	}
	return nil
}

// getJSON decodes key into v and reports whether the key existed.
func (b *BoltStore) getJSON(key []byte, v interface{}) (bool, error) {
	found := false
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(wifiBucket)
		if bucket == nil {
			return nil
		}
		raw := bucket.Get(key)
		if raw == nil || bytes.Equal(raw, []byte("null")) {
			return nil
		}
		found = true
		if err := json.Unmarshal(raw, v); err != nil {
			return NewCorruptError(fmt.Sprintf("failed to decode %s", key), b.path, err)
		}
		return nil
	})
	if err != nil {
		if IsCorruptError(err) {
			return found, err
		}
		return found, NewIOError(fmt.Sprintf("failed to read %s", key), b.path, err)
	}
	return found, nil
}
