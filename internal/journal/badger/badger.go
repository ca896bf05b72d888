package badger

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/elastic-io/mediagate/internal/journal"
	"github.com/elastic-io/mediagate/internal/log"
	"github.com/elastic-io/mediagate/internal/types"
)

func init() {
	journal.BackendRegister("badger", NewBadgerJournal)
}

const (
	// Badger 是扁平键值存储，使用前缀区分记录
	journalPrefix = "journal/"

	gcInterval = 10 * time.Minute
)

// BadgerJournal 使用 Badger 保存上传记录
type BadgerJournal struct {
	db     *badger.DB
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

func NewBadgerJournal(path string) (journal.Journal, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.ValueLogFileSize = 64 * types.MB
	opts.NumMemtables = 2
	opts.BlockCacheSize = 16 * types.MB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	j := &BadgerJournal{
		db:   db,
		done: make(chan struct{}),
	}
	j.startGCRoutine()
	return j, nil
}

func (j *BadgerJournal) startGCRoutine() {
	ticker := time.NewTicker(gcInterval)
	go func() {
		defer ticker.Stop()
		defer func() {
			if r := recover(); r != nil {
				log.Logger.Errorf("Recovered from panic in GC routine: %v\n%s", r, debug.Stack())
			}
		}()
		for {
			select {
			case <-ticker.C:
				j.mu.RLock()
				if !j.closed {
					if err := j.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
						log.Logger.Errorf("Error running value log GC: %v", err)
					}
				}
				j.mu.RUnlock()
			case <-j.done:
				return
			}
		}
	}()
}

func entryKey(requestID, key string) []byte {
	return []byte(journalPrefix + journal.EntryKey(requestID, key))
}

func (j *BadgerJournal) check() error {
	if j.closed {
		return fmt.Errorf("journal is closed")
	}
	return nil
}

// scan 遍历 prefix 下的所有记录，值在回调前已完成复制
func scan(txn *badger.Txn, prefix []byte, fn func(key []byte, e journal.Entry) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		e := journal.Entry{}
		err := item.Value(func(val []byte) error {
			return e.UnmarshalJSON(val)
		})
		if err != nil {
			log.Logger.Warnf("Failed to unmarshal journal record %s: %v", item.Key(), err)
			continue
		}
		if err := fn(item.KeyCopy(nil), e); err != nil {
			return err
		}
	}
	return nil
}

func (j *BadgerJournal) Record(e journal.Entry) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if err := j.check(); err != nil {
		return err
	}

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
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(e.RequestID, e.Key), data)
	})
}

func (j *BadgerJournal) Finish(requestID string, state types.RecordState) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if err := j.check(); err != nil {
		return err
	}

	prefix := []byte(journalPrefix + journal.RequestPrefix(requestID))
	return j.db.Update(func(txn *badger.Txn) error {
		updates := map[string][]byte{}
		err := scan(txn, prefix, func(key []byte, e journal.Entry) error {
			if state == types.RecordCompleted {
				updates[string(key)] = nil
				return nil
			}
			e.State = state
			data, err := e.MarshalJSON()
			if err != nil {
				return err
			}
			updates[string(key)] = data
			return nil
		})
		if err != nil {
			return err
		}
		for k, v := range updates {
			var err error
			if v == nil {
				err = txn.Delete([]byte(k))
			} else {
				err = txn.Set([]byte(k), v)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *BadgerJournal) List(state types.RecordState) ([]journal.Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if err := j.check(); err != nil {
		return nil, err
	}

	var entries []journal.Entry
	err := j.db.View(func(txn *badger.Txn) error {
		return scan(txn, []byte(journalPrefix), func(_ []byte, e journal.Entry) error {
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

func (j *BadgerJournal) Remove(requestID, key string) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if err := j.check(); err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(requestID, key))
	})
}

func (j *BadgerJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	close(j.done)
	return j.db.Close()
}
