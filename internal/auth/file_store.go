package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore keeps the user catalogue as a JSON list in one file
type FileStore struct {
	path  string
	mu    sync.RWMutex
	users map[string]*User
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path:  path,
		users: make(map[string]*User),
	}

	if err := fs.load(); err != nil {
		return nil, err
	}

	return fs, nil
}

func (fs *FileStore) load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if os.IsNotExist(err) {
		// first run, nothing saved yet
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var list []*User
	if err := json.NewDecoder(f).Decode(&list); err != nil {
		return fmt.Errorf("%s: %w", fs.path, err)
	}

	for _, u := range list {
		fs.users[u.Username] = u
	}
	return nil
}

// persist writes the catalogue to a temporary file and renames it into place
func (fs *FileStore) persist() error {
	tmp := fs.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fs.sorted()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path)
}

func (fs *FileStore) sorted() []*User {
	list := make([]*User, 0, len(fs.users))
	for _, u := range fs.users {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Username < list[j].Username })
	return list
}

// GetUser returns a copy the caller may change freely
func (fs *FileStore) GetUser(username string) (*User, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	u, ok := fs.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return u.clone(), nil
}

func (fs *FileStore) SaveUser(u *User) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.users[u.Username] = u.clone()
	return fs.persist()
}

func (fs *FileStore) DeleteUser(username string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	delete(fs.users, username)
	return fs.persist()
}

func (fs *FileStore) ListUsers() ([]*User, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	list := fs.sorted()
	for i, u := range list {
		list[i] = u.clone()
	}
	return list, nil
}
