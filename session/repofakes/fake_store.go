// Package repofakes provides an in-memory session store for tests.
package repofakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/session"
)

var _ session.Store = (*FakeStore)(nil)

// FakeStore keeps the single session record in memory and counts writes.
// FailSave, FailLoad and FailDelete inject errors.
type FakeStore struct {
	lock sync.Mutex
	sess *session.Session

	saveCalls   int
	deleteCalls int

	FailSave   error
	FailLoad   error
	FailDelete error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) Save(_ context.Context, sess *session.Session) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.FailSave != nil {
		return fs.FailSave
	}
	fs.saveCalls++
	copied := *sess
	fs.sess = &copied
	return nil
}

func (fs *FakeStore) Load(_ context.Context) (*session.Session, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.FailLoad != nil {
		return nil, fs.FailLoad
	}
	if fs.sess == nil {
		return nil, session.NotFoundErr
	}
	copied := *fs.sess
	return &copied, nil
}

func (fs *FakeStore) Delete(_ context.Context) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.FailDelete != nil {
		return fs.FailDelete
	}
	fs.deleteCalls++
	fs.sess = nil
	return nil
}

// Stored returns the currently persisted record, nil when absent.
func (fs *FakeStore) Stored() *session.Session {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.sess == nil {
		return nil
	}
	copied := *fs.sess
	return &copied
}

// SaveCalls reports how many successful Save calls were made.
func (fs *FakeStore) SaveCalls() int {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.saveCalls
}

// DeleteCalls reports how many successful Delete calls were made.
func (fs *FakeStore) DeleteCalls() int {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.deleteCalls
}

// Seed places a record in the store directly, bypassing the counters.
func (fs *FakeStore) Seed(sess *session.Session) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	copied := *sess
	fs.sess = &copied
}
