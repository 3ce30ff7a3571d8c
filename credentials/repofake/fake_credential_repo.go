package repofake

import (
	"sync"

	"github.com/jrsteele09/go-crm-client/credentials"
)

var _ credentials.Repo = (*FakeCredentialRepo)(nil)

// FakeCredentialRepo is an in-memory credentials.Repo for tests.
type FakeCredentialRepo struct {
	lock   sync.RWMutex
	cred   *credentials.Credential
	Saves  int
	Clears int
}

func NewFakeCredentialRepo() *FakeCredentialRepo {
	return &FakeCredentialRepo{}
}

func (r *FakeCredentialRepo) Save(c credentials.Credential) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.Saves++
	stored := c
	r.cred = &stored
	return nil
}

func (r *FakeCredentialRepo) Load() (*credentials.Credential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.cred == nil {
		return nil, nil
	}
	cred := *r.cred
	return &cred, nil
}

func (r *FakeCredentialRepo) Clear() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.Clears++
	r.cred = nil
	return nil
}
