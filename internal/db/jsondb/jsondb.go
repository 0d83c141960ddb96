// Package jsondb implements the storage contract on top of a single JSON file.
// The whole data set is kept in memory and flushed to disk on Close.
// It is meant for local development; the durable backend is postgresdb.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/shrturl/shrturl/internal/alias"
	"github.com/shrturl/shrturl/internal/models"
	"github.com/shrturl/shrturl/internal/user"
)

// JSONDB is a file-backed storage implementation.
type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

// CacheStruct is the on-disk document layout.
// AliasOrder preserves insertion order of aliases so listing and paging
// stay deterministic across restarts.
type CacheStruct struct {
	Users      map[string]user.User
	Aliases    map[string]alias.Alias
	AliasOrder []string
}

func emptyCache() CacheStruct {
	return CacheStruct{
		Users:      map[string]user.User{},
		Aliases:    map[string]alias.Alias{},
		AliasOrder: []string{},
	}
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %s", err)
	}

	file, err2 := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err2 != nil {
		return fmt.Errorf("error opening file: %s", err2)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %s", err)
	}

	return nil
}

func parseJSONFile(fileName string, cacheMap *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	return decoder.Decode(cacheMap)
}

// New opens or creates the JSON database file.
func New(fileName string) (*JSONDB, error) {
	db := JSONDB{
		fileName: fileName,
		Cache:    emptyCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := writeToJSONFile(fileName, emptyCache()); err != nil {
			return nil, err
		}
	}

	return &db, nil
}

// NewEmpty returns a JSONDB with an initialized cache and no backing file.
// It is the building block of the in-memory storage.
func NewEmpty() *JSONDB {
	return &JSONDB{
		Cache: emptyCache(),
	}
}

// CreateUser stores a new user. It returns models.ErrEmailAlreadyExists
// when the email is already registered.
func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) (*user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.Cache.Users {
		if existing.Email == usr.Email {
			return nil, models.ErrEmailAlreadyExists
		}
	}

	created := *usr
	if created.ID == "" {
		created.ID = uuid.New().String()
	}
	db.Cache.Users[created.ID] = created

	return &created, nil
}

// FindUserByEmail looks a user up by email.
func (db *JSONDB) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, usr := range db.Cache.Users {
		if usr.Email == email {
			found := usr
			return &found, true, nil
		}
	}

	return nil, false, nil
}

// GetUserByID looks a user up by its UUID.
func (db *JSONDB) GetUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, ok := db.Cache.Users[userID]
	if !ok {
		return nil, false, nil
	}
	found := usr

	return &found, true, nil
}

// InsertAlias stores a new alias record. It returns models.ErrAliasAlreadyExists
// when the short token is already taken.
func (db *JSONDB) InsertAlias(ctx context.Context, a *alias.Alias) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.Cache.Aliases[a.Alias]; exists {
		return models.ErrAliasAlreadyExists
	}

	stored := *a
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.VisitorLog = append([]string{}, a.VisitorLog...)
	db.Cache.Aliases[stored.Alias] = stored
	db.Cache.AliasOrder = append(db.Cache.AliasOrder, stored.Alias)
	a.ID = stored.ID

	return nil
}

// FindAliasByName returns the alias record with the given short token.
func (db *JSONDB) FindAliasByName(ctx context.Context, name string) (*alias.Alias, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	stored, ok := db.Cache.Aliases[name]
	if !ok {
		return nil, false, nil
	}
	found := cloneAlias(stored)

	return &found, true, nil
}

// FindAliasByPublicLink returns the alias record with the given public link.
func (db *JSONDB) FindAliasByPublicLink(ctx context.Context, publicLink string) (*alias.Alias, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, name := range db.Cache.AliasOrder {
		if stored, ok := db.Cache.Aliases[name]; ok && stored.PublicLink == publicLink {
			found := cloneAlias(stored)
			return &found, true, nil
		}
	}

	return nil, false, nil
}

// RegisterVisit increments the visit counter and appends the visitor address,
// as a single atomic mutation. The returned bool reports whether the alias exists.
func (db *JSONDB) RegisterVisit(ctx context.Context, name, visitorAddr string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.Cache.Aliases[name]
	if !ok {
		return false, nil
	}

	stored.VisitCount++
	stored.VisitorLog = append(stored.VisitorLog, visitorAddr)
	db.Cache.Aliases[name] = stored

	return true, nil
}

// GetUserAliases returns every alias owned by the given user, in insertion order.
func (db *JSONDB) GetUserAliases(ctx context.Context, ownerID string) ([]alias.Alias, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := []alias.Alias{}
	for _, name := range db.Cache.AliasOrder {
		if stored, ok := db.Cache.Aliases[name]; ok && stored.OwnerID == ownerID {
			result = append(result, cloneAlias(stored))
		}
	}

	return result, nil
}

// GetAliasesPage returns up to limit aliases across all owners,
// skipping the first skip records, in insertion order.
func (db *JSONDB) GetAliasesPage(ctx context.Context, skip, limit int) ([]alias.Alias, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := []alias.Alias{}
	if skip >= len(db.Cache.AliasOrder) {
		return result, nil
	}

	for _, name := range db.Cache.AliasOrder[skip:] {
		if len(result) == limit {
			break
		}
		if stored, ok := db.Cache.Aliases[name]; ok {
			result = append(result, cloneAlias(stored))
		}
	}

	return result, nil
}

// Ping is a no-op for the file backend.
func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close flushes the cache to the backing file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}

func cloneAlias(a alias.Alias) alias.Alias {
	cloned := a
	cloned.VisitorLog = append([]string{}, a.VisitorLog...)

	return cloned
}
