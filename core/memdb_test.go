package core

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

type testUser struct {
	id    int
	name  string
	staff bool
}

func (u *testUser) ID() int       { return u.id }
func (u *testUser) Name() string  { return u.name }
func (u *testUser) IsStaff() bool { return u.staff }

// memDB implements EntityDB, ObjectDB and UserDB in memory. It stores copies, so callers can't modify stored records.
type memDB struct {
	mu             sync.Mutex
	entities       map[uuid.UUID]Entity
	history        []HistoryEntry
	objects        map[string]Object
	users          map[int]*testUser
	failTransition error
}

func newMemDB() *memDB {
	return &memDB{
		entities: make(map[uuid.UUID]Entity),
		objects:  make(map[string]Object),
		users:    make(map[int]*testUser),
	}
}

func objectKey(objectType, id string) string {
	return objectType + "/" + id
}

func (db *memDB) GetEntity(ctx context.Context, id uuid.UUID) (*Entity, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	e, ok := db.entities[id]
	if !ok {
		return nil, &NotFoundError{What: "moderated entity", Key: id.String()}
	}
	e.Prior = e.Prior.Clone()
	return &e, nil
}

func (db *memDB) GetEntityFor(ctx context.Context, objectType, objectID string) (*Entity, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, e := range db.entities {
		if e.ObjectType == objectType && e.ObjectID == objectID {
			e.Prior = e.Prior.Clone()
			return &e, nil
		}
	}
	return nil, &NotFoundError{What: "moderated entity for", Key: objectKey(objectType, objectID)}
}

func (db *memDB) InsertEntity(ctx context.Context, e *Entity, h HistoryEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	var stored = *e
	stored.Prior = e.Prior.Clone()
	db.entities[e.ID] = stored
	db.history = append(db.history, h)
	return nil
}

func (db *memDB) Transition(ctx context.Context, e *Entity, d Decision, h HistoryEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.failTransition != nil {
		return db.failTransition
	}
	stored, ok := db.entities[e.ID]
	if !ok {
		return &NotFoundError{What: "moderated entity", Key: e.ID.String()}
	}
	d.apply(&stored)
	db.entities[e.ID] = stored
	db.history = append(db.history, h)
	return nil
}

func (db *memDB) queue(filter QueueFilter) []*Entity {
	var statuses = make(map[Status]bool)
	for _, s := range filter.EffectiveStatuses() {
		statuses[s] = true
	}
	var result = []*Entity{}
	for _, e := range db.entities {
		e := e
		if e.State == Draft || !statuses[e.Status] {
			continue
		}
		if filter.Type != "" && e.ObjectType != filter.Type {
			continue
		}
		result = append(result, &e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (db *memDB) Queue(ctx context.Context, filter QueueFilter, limit, offset int) ([]*Entity, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var result = db.queue(filter)
	if offset > len(result) {
		offset = len(result)
	}
	result = result[offset:]
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (db *memDB) CountQueue(ctx context.Context, filter QueueFilter) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.queue(filter)), nil
}

func (db *memDB) History(ctx context.Context, entityID uuid.UUID) ([]HistoryEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var entries = []HistoryEntry{}
	for _, h := range db.history {
		if h.EntityID == entityID {
			entries = append(entries, h)
		}
	}
	return entries, nil
}

func (db *memDB) GetObject(ctx context.Context, objectType, id string) (*Object, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	o, ok := db.objects[objectKey(objectType, id)]
	if !ok {
		return nil, &NotFoundError{What: "object", Key: objectKey(objectType, id)}
	}
	o.Fields = o.Fields.Clone()
	return &o, nil
}

func (db *memDB) SaveObject(ctx context.Context, o *Object) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	var stored = *o
	stored.Fields = o.Fields.Clone()
	db.objects[objectKey(o.Type, o.ID)] = stored
	return nil
}

func (db *memDB) Underlying(ctx context.Context, objectType string) ([]*Object, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var result = []*Object{}
	for _, o := range db.objects {
		o := o
		if o.Type == objectType {
			result = append(result, &o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (db *memDB) Visible(ctx context.Context, objectType string, visibleUntilRejected bool) ([]*Object, error) {
	all, _ := db.Underlying(ctx, objectType)
	var result = []*Object{}
	for _, o := range all {
		e, err := db.GetEntityFor(ctx, o.Type, o.ID)
		if IsNotFound(err) || (err == nil && e.Visible(visibleUntilRejected)) {
			result = append(result, o)
		}
	}
	return result, nil
}

func (db *memDB) GetUser(ctx context.Context, id int) (DBUser, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if u, ok := db.users[id]; ok {
		return u, nil
	}
	return nil, &NotFoundError{What: "user", Key: strconv.Itoa(id)}
}

func (db *memDB) GetUserByName(ctx context.Context, name string) (DBUser, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, u := range db.users {
		if u.name == name {
			return u, nil
		}
	}
	return nil, &NotFoundError{What: "user", Key: name}
}

func (db *memDB) InsertUser(ctx context.Context, name string) (DBUser, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var u = &testUser{id: len(db.users) + 1, name: name}
	db.users[u.id] = u
	return u, nil
}

func (db *memDB) LoginUser(ctx context.Context, name, password string) (DBUser, error) {
	return nil, ErrUnauthorized
}

func (db *memDB) SetPassword(ctx context.Context, u DBUser, password string) error {
	return nil
}

func (db *memDB) SetStaff(ctx context.Context, u DBUser, staff bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if stored, ok := db.users[u.ID()]; ok {
		stored.staff = staff
	}
	return nil
}
