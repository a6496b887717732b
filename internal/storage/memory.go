package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process ObjectStore used by tests and the local development stack
type Memory struct {
	bucketURI
	mu      sync.RWMutex
	order   []string
	objects map[string]memoryObject
}

type memoryObject struct {
	data    []byte
	updated time.Time
}

// NewMemory creates an empty in-memory bucket
func NewMemory(bucket string) *Memory {
	return &Memory{
		bucketURI: bucketURI{scheme: "mem", bucket: bucket},
		objects:   make(map[string]memoryObject),
	}
}

// Put stores an object directly
func (m *Memory) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.objects[name]; !exists {
		m.order = append(m.order, name)
	}
	m.objects[name] = memoryObject{data: append([]byte(nil), data...), updated: time.Now()}
}

// Get returns a stored object's bytes
func (m *Memory) Get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// List returns objects in insertion order
func (m *Memory) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	objects := make([]ObjectInfo, 0)
	for _, name := range m.order {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		obj := m.objects[name]
		objects = append(objects, ObjectInfo{Name: name, Size: int64(len(obj.data)), Updated: obj.updated})
	}
	return objects, nil
}

func (m *Memory) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, ok := m.Get(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Write(ctx context.Context, name string, r io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object body: %w", err)
	}
	m.Put(name, data)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
