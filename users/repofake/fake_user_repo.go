package fakeuserrepo

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-oauth2-server/clients"
	"github.com/jrsteele09/go-oauth2-server/oauth2"
	"github.com/jrsteele09/go-oauth2-server/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users       map[string]*users.User
	usernameIDs map[string]string // username to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		usernameIDs: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.Username == "" {
		return errors.New("username is required")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	ur.users[user.ID] = user
	ur.usernameIDs[user.Username] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetUserEntityByUserCredentials(_ context.Context, username, password string, _ oauth2.GrantType, _ *clients.Client) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userID, ok := ur.usernameIDs[username]
	if !ok {
		return nil, nil
	}
	user := ur.users[userID]
	if user.Blocked || !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, nil
	}
	return user, nil
}
