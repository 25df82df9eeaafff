package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskflow/apiserver/internal/auth"
	"github.com/taskflow/apiserver/internal/mq"
	"github.com/taskflow/apiserver/internal/storage"
	"github.com/taskflow/apiserver/internal/store/fakestore"
	"github.com/taskflow/apiserver/types"
)

type fixture struct {
	store  *fakestore.Store
	codec  *auth.TokenCodec
	users  *UserService
	tasks  *TaskService
	stats  *StatsService
	events *captureBackend
}

func newFixture(t *testing.T, objects *storage.Storage) *fixture {
	t.Helper()

	codec, err := auth.NewTokenCodec(auth.TokenConfig{Secret: []byte("test-secret"), Lifetime: time.Hour})
	require.NoError(t, err)

	fs := fakestore.New()
	events := &captureBackend{}
	publisher := mq.NewPublisher(mq.New(events))

	return &fixture{
		store:  fs,
		codec:  codec,
		users:  NewUserService(fs.Users(), codec, publisher),
		tasks:  NewTaskService(fs.Tasks(), fs.Users(), objects, publisher),
		stats:  NewStatsService(fs.Users(), fs.Tasks()),
		events: events,
	}
}

func (f *fixture) provision(t *testing.T, name string, role types.Role) types.User {
	t.Helper()
	user, err := f.users.Provision(context.Background(), RegisterInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: name + "-password",
	}, role)
	require.NoError(t, err)
	return user
}

type captureBackend struct {
	mu     sync.Mutex
	events []string
}

func (b *captureBackend) Publish(_ context.Context, channel string, _ []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, channel+"/"+attrs["type"])
	return "id", nil
}

func (b *captureBackend) Subscribe(context.Context, string, mq.Handler) error { return nil }
func (b *captureBackend) Close() error                                       { return nil }

func (b *captureBackend) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: make(map[string][]byte)}
}

func (m *memObjects) EnsureBucket(context.Context) error { return nil }

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memObjects) Bucket() string { return "test" }

func (m *memObjects) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
