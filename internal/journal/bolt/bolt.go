package bolt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/elastic-io/mediagate/internal/journal"
	"github.com/elastic-io/mediagate/internal/log"
	"github.com/elastic-io/mediagate/internal/types"
	"go.etcd.io/bbolt"
)

func init() {
	journal.BackendRegister("bolt", NewBoltJournal)
}

const (
	uploadsBucket = "uploads"

	maxRetries = 3
	retryDelay = 100 * time.Millisecond
)

var errClosed = fmt.Errorf("journal is closed")

// BoltJournal 使用 BoltDB 保存上传记录，键为 <requestID>/<key>
type BoltJournal struct {
	db        *bbolt.DB
	closeOnce sync.Once
	closed    bool
	mu        sync.RWMutex
}

func NewBoltJournal(path string) (journal.Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal dir: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout:      1 * time.Second,
		FreelistType: bbolt.FreelistMapType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(uploadsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize bucket %s: %w", uploadsBucket, err)
	}

	return &BoltJournal{db: db}, nil
}

// safeBucketOperation 在事务中取出 uploads 桶并执行操作，恢复 panic
func (j *BoltJournal) safeBucketOperation(tx *bbolt.Tx, operation func(*bbolt.Bucket) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Logger.Errorf("Recovered from panic in bucket operation: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("bucket operation panicked: %v", r)
		}
	}()

	bucket := tx.Bucket([]byte(uploadsBucket))
	if bucket == nil {
		return fmt.Errorf("bucket %s not found", uploadsBucket)
	}
	return operation(bucket)
}

func (j *BoltJournal) withRetry(operation func() error) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if err := operation(); err != nil {
			if err == errClosed {
				return err
			}
			lastErr = err
			log.Logger.Warnf("Journal operation failed (attempt %d/%d): %v", i+1, maxRetries, err)
			if i < maxRetries-1 {
				time.Sleep(retryDelay * time.Duration(i+1))
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, lastErr)
}

func (j *BoltJournal) update(fn func(*bbolt.Bucket) error) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return errClosed
	}
	return j.withRetry(func() error {
		return j.db.Update(func(tx *bbolt.Tx) error {
			return j.safeBucketOperation(tx, fn)
		})
	})
}

func (j *BoltJournal) view(fn func(*bbolt.Bucket) error) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return errClosed
	}
	return j.db.View(func(tx *bbolt.Tx) error {
		return j.safeBucketOperation(tx, fn)
	})
}

func (j *BoltJournal) Record(e journal.Entry) error {
	if e.State == "" {
		e.State = types.RecordPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	data, err := e.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return j.update(func(b *bbolt.Bucket) error {
		return b.Put([]byte(journal.EntryKey(e.RequestID, e.Key)), data)
	})
}

func (j *BoltJournal) Finish(requestID string, state types.RecordState) error {
	prefix := []byte(journal.RequestPrefix(requestID))
	return j.update(func(b *bbolt.Bucket) error {
		updates := map[string][]byte{}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if state == types.RecordCompleted {
				updates[string(k)] = nil
				continue
			}
			e := journal.Entry{}
			if err := e.UnmarshalJSON(v); err != nil {
				log.Logger.Warn("Failed to unmarshal journal record: ", err)
				continue
			}
			e.State = state
			data, err := e.MarshalJSON()
			if err != nil {
				return err
			}
			updates[string(k)] = data
		}
		// 游标遍历期间不修改桶
		for k, v := range updates {
			var err error
			if v == nil {
				err = b.Delete([]byte(k))
			} else {
				err = b.Put([]byte(k), v)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *BoltJournal) List(state types.RecordState) ([]journal.Entry, error) {
	var entries []journal.Entry
	err := j.view(func(b *bbolt.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			e := journal.Entry{}
			if err := e.UnmarshalJSON(v); err != nil {
				log.Logger.Warn("Failed to unmarshal journal record: ", err)
				return nil
			}
			if state == "" || e.State == state {
				entries = append(entries, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (j *BoltJournal) Remove(requestID, key string) error {
	return j.update(func(b *bbolt.Bucket) error {
		return b.Delete([]byte(journal.EntryKey(requestID, key)))
	})
}

func (j *BoltJournal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		j.closed = true
		err = j.db.Close()
	})
	return err
}
