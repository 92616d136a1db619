package blobstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store. It records every upload and can be told to
// fail specific operations. Exported for use by uploader/loader/releasenote tests.
type Memory struct {
	mu         sync.Mutex
	containers map[string]map[string][]byte
	failures   map[string]error // key: "op container/name" or "op container"
	Uploads    []string         // "container/name", in call order
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		containers: make(map[string]map[string][]byte),
		failures:   make(map[string]error),
	}
}

// Put seeds a blob without recording an upload.
func (m *Memory) Put(container, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(container, name, data)
}

// Get returns a stored blob.
func (m *Memory) Get(container, name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.containers[container][name]
	return data, ok
}

// FailOn makes the given operation ("list", "download", "upload") return err.
// target is "container" for list and "container/name" otherwise.
func (m *Memory) FailOn(op, target string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op+" "+target] = err
}

func (m *Memory) List(_ context.Context, container string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["list "+container]; err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.containers[container]))
	for name := range m.containers[container] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Download(_ context.Context, container, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["download "+container+"/"+name]; err != nil {
		return nil, err
	}
	data, ok := m.containers[container][name]
	if !ok {
		return nil, fmt.Errorf("downloading %s/%s: blob not found", container, name)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Upload(_ context.Context, container, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["upload "+container+"/"+name]; err != nil {
		return err
	}
	m.put(container, name, data)
	m.Uploads = append(m.Uploads, container+"/"+name)
	return nil
}

func (m *Memory) put(container, name string, data []byte) {
	if m.containers[container] == nil {
		m.containers[container] = make(map[string][]byte)
	}
	m.containers[container][name] = append([]byte(nil), data...)
}
