package localstore

import (
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Durable keys.
const (
	KeyOrderCount     = "orderCount"
	KeyWhatsAppNumber = "whatsappNumber"
)

var localBucket = []byte("local")

// Durable is a KV and Counter backed by a bbolt file. Values survive restarts
// of this instance but are not shared between instances.
type Durable struct {
	db *bolt.DB
}

// OpenDurable opens (or creates) the bbolt file at path.
func OpenDurable(path string) (*Durable, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(localBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Durable{db: db}, nil
}

// Close releases the file lock.
func (d *Durable) Close() error {
	return d.db.Close()
}

func (d *Durable) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := d.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(localBucket).Get([]byte(key)); v != nil {
			value, found = string(v), true
		}
		return nil
	})
	return value, found, err
}

func (d *Durable) Set(key, value string) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(localBucket).Put([]byte(key), []byte(value))
	})
}

func (d *Durable) Delete(key string) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(localBucket).Delete([]byte(key))
	})
}

// Incr adds one to the integer stored at key and returns the new value.
// A missing or unparsable value counts as zero.
func (d *Durable) Incr(key string) (int64, error) {
	var n int64
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(localBucket)
		n, _ = strconv.ParseInt(string(b.Get([]byte(key))), 10, 64)
		n++
		return b.Put([]byte(key), []byte(strconv.FormatInt(n, 10)))
	})
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return n, nil
}
