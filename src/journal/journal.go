// Package journal records the events of a test network session in a badger
// database inside the session directory.
//
// The journal survives a failed session, next to the node logs, so that the
// order of state transitions, bootstrap steps and command outcomes can be
// inspected after the fact (see the netrunner journal command).
package journal

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/sirupsen/logrus"
)

const entryPrefix = "entry_"

func entryKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", entryPrefix, seq))
}

// Journal is an append-only event log.
type Journal struct {
	db      *badger.DB
	path    string
	session string
	logger  *logrus.Entry

	mu     sync.Mutex
	seq    uint64
	closed bool
}

// Open opens or creates the journal at path. Entries recorded through it are
// tagged with session.
func Open(path string, session string, logger *logrus.Entry) (*Journal, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.Logger = badgerLogger{logger}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	j := &Journal{
		db:      handle,
		path:    path,
		session: session,
		logger:  logger,
	}

	last, err := j.lastSeq()
	if err != nil {
		handle.Close()
		return nil, err
	}
	j.seq = last

	return j, nil
}

func (j *Journal) lastSeq() (uint64, error) {
	var last uint64

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(entryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			seq, err := strconv.ParseUint(key[len(entryPrefix):], 10, 64)
			if err != nil {
				return err
			}
			last = seq
		}
		return nil
	})

	return last, err
}

// Path returns the directory of the journal.
func (j *Journal) Path() string {
	return j.path
}

// Record appends an entry. Recording into a closed or nil journal is a no-op.
func (j *Journal) Record(kind, subject, detail string) error {
	if j == nil {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	j.seq++
	entry := Entry{
		Seq:     j.seq,
		Time:    time.Now().UnixNano(),
		Session: j.session,
		Kind:    kind,
		Subject: subject,
		Detail:  detail,
	}

	val, err := entry.Marshal()
	if err != nil {
		return err
	}

	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry.Seq), val)
	})
}

// Recordf is Record with a formatted detail. Errors are logged, not returned.
// A nil Journal records nothing.
func (j *Journal) Recordf(kind, subject, format string, args ...interface{}) {
	if j == nil {
		return
	}
	if err := j.Record(kind, subject, fmt.Sprintf(format, args...)); err != nil {
		j.logger.WithError(err).Warn("Cannot record journal entry")
	}
}

// Entries returns every entry in recording order.
func (j *Journal) Entries() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil, fmt.Errorf("journal %s is closed", j.path)
	}

	var entries []Entry

	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(entryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			var e Entry
			if err := e.Unmarshal(val); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})

	return entries, err
}

// Close closes the underlying database. It is safe to call more than once,
// and on a nil Journal.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	return j.db.Close()
}

// Read opens the journal at path, returns its entries and closes it.
func Read(path string, logger *logrus.Entry) ([]Entry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	j, err := Open(path, "", logger)
	if err != nil {
		return nil, err
	}
	defer j.Close()

	return j.Entries()
}

// badgerLogger demotes badger's informational chatter to debug.
type badgerLogger struct {
	entry *logrus.Entry
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.entry.Errorf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.entry.Warningf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.entry.Debugf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.entry.Debugf(f, v...) }
