package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// Memory: in-memory реализация Storage для дев-режима и тестов.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	data        []byte
	contentType string
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]object)}
}

func (m *Memory) Upload(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[objectName] = object{data: data, contentType: contentType}
	m.mu.Unlock()
	return objectName, nil
}

// Delete удаляет объект; отсутствие объекта ошибкой не считается.
func (m *Memory) Delete(ctx context.Context, objectName string) error {
	m.mu.Lock()
	delete(m.objects, objectName)
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if !m.Has(objectName) {
		return "", fmt.Errorf("object %q: %w", objectName, ErrNotFound)
	}
	return "memory://objects/" + url.PathEscape(objectName), nil
}

// Has сообщает, хранится ли объект.
func (m *Memory) Has(objectName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[objectName]
	return ok
}

// Get возвращает содержимое и тип объекта.
func (m *Memory) Get(objectName string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[objectName]
	return o.data, o.contentType, ok
}

// Len возвращает число объектов.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ Storage = (*Memory)(nil)
