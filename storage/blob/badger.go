package blobstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
)

const keyPrefix = "blob/"

// Store is a core.BlobStore backed by badger.
// Values are stored as `<content type>\x00<data>`.
type Store struct {
	db *badger.DB
}

var _ core.BlobStore = (*Store)(nil)

// Open opens the store in dir, or in memory when dir is empty.
func Open(dir string, logger core.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening badger")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, blob core.Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if blob.Key == "" {
		return errors.New("empty blob key")
	}
	val := make([]byte, 0, len(blob.ContentType)+1+len(blob.Data))
	val = append(val, blob.ContentType...)
	val = append(val, 0)
	val = append(val, blob.Data...)

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+blob.Key), val)
	})
	return errors.Wrap(err, "storing blob")
}

func (s *Store) Get(ctx context.Context, key string) (core.Blob, error) {
	if err := ctx.Err(); err != nil {
		return core.Blob{}, err
	}
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return core.Blob{}, core.ErrBlobNotFound
	}
	if err != nil {
		return core.Blob{}, errors.Wrap(err, "reading blob")
	}

	blob := core.Blob{Key: key, Data: val}
	if i := bytes.IndexByte(val, 0); i >= 0 {
		blob.ContentType, blob.Data = string(val[:i]), val[i+1:]
	}
	return blob, nil
}

// Delete removes the blob under key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
	return errors.Wrap(err, "deleting blob")
}

// badgerLogger routes badger logs to the app logger. Info and debug logs are dropped.
type badgerLogger struct {
	logger core.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Error(fmt.Sprintf("badger: "+format, args...))
	}
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Warn(fmt.Sprintf("badger: "+format, args...))
	}
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
