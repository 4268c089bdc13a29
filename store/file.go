// Package store provides persistent session store implementations: a JSON
// file on disk (optionally sealed with a secret key) and a Redis record.
package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/jrsteele09/go-auth-client/session"
)

const nonceLength = 24

var _ session.Store = (*File)(nil)

// File persists the session record as a JSON file, written atomically and
// readable only by the owning user. With a secret configured the payload is
// sealed with nacl/secretbox so a token never sits on disk in the clear.
type File struct {
	path   string
	secret *[32]byte
	lock   sync.Mutex
}

// FileOption defines a function type to modify the File instance.
type FileOption func(*File)

// WithSecret seals the stored record with key.
func WithSecret(key [32]byte) FileOption {
	return func(f *File) {
		f.secret = &key
	}
}

// NewFile creates a file store at path.
func NewFile(path string, options ...FileOption) *File {
	f := &File{path: path}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Save implements session.Store.
func (f *File) Save(_ context.Context, sess *session.Session) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	payload, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "[File.Save] marshal session")
	}

	if f.secret != nil {
		payload, err = f.seal(payload)
		if err != nil {
			return errors.Wrap(err, "[File.Save] seal session")
		}
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.Wrap(err, "[File.Save] create directory")
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return errors.Wrap(err, "[File.Save] write temp file")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrap(err, "[File.Save] rename into place")
	}
	return nil
}

// Load implements session.Store.
func (f *File) Load(_ context.Context) (*session.Session, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	payload, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, session.NotFoundErr
		}
		return nil, errors.Wrap(err, "[File.Load] read file")
	}

	if f.secret != nil {
		payload, err = f.open(payload)
		if err != nil {
			return nil, errors.Wrap(err, "[File.Load] open sealed session")
		}
	}

	sess := &session.Session{}
	if err := json.Unmarshal(payload, sess); err != nil {
		return nil, errors.Wrap(err, "[File.Load] unmarshal session")
	}
	return sess, nil
}

// Delete implements session.Store.
func (f *File) Delete(_ context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[File.Delete] remove file")
	}
	return nil
}

// seal prepends a random nonce to the secretbox ciphertext.
func (f *File) seal(payload []byte) ([]byte, error) {
	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}
	return secretbox.Seal(nonce[:], payload, &nonce, f.secret), nil
}

func (f *File) open(payload []byte) ([]byte, error) {
	if len(payload) < nonceLength {
		return nil, errors.New("sealed payload too short")
	}
	var nonce [nonceLength]byte
	copy(nonce[:], payload[:nonceLength])
	opened, ok := secretbox.Open(nil, payload[nonceLength:], &nonce, f.secret)
	if !ok {
		return nil, errors.New("sealed payload failed to open")
	}
	return opened, nil
}
