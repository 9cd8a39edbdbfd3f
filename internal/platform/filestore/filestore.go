// Package filestore persists uploaded certificate blobs. Files are
// content-addressed by a generated FileID; the original filename only
// contributes the extension.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	id "annuaire/pkg/domain"
)

// Disk writes blobs under a base directory, one file per FileID.
type Disk struct {
	dir string
}

func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create file store directory: %w", err)
	}
	return &Disk{dir: dir}, nil
}

func (d *Disk) Save(_ context.Context, filename string, content []byte) (id.FileID, error) {
	fileID := id.FileID(uuid.New())
	path := filepath.Join(d.dir, fileID.String()+safeExtension(filename))
	if err := os.WriteFile(path, content, 0o640); err != nil {
		return id.FileID{}, fmt.Errorf("write certificate file: %w", err)
	}
	return fileID, nil
}

func safeExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// Memory keeps blobs in a map. Test and development use only.
type Memory struct {
	mu    sync.Mutex
	blobs map[id.FileID][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[id.FileID][]byte)}
}

func (m *Memory) Save(_ context.Context, _ string, content []byte) (id.FileID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fileID := id.FileID(uuid.New())
	m.blobs[fileID] = append([]byte(nil), content...)
	return fileID, nil
}
