// Package persistence checkpoints durable unit state (poller watermark,
// coordinator caches) so a process restart resumes from the last completed
// step instead of replaying from scratch.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Service hands out named stores.
type Service interface {
	NewStore(prefix, id, tag string) Store
}

// Store persists one JSON-serializable value.
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
}

// ErrNotExists is returned by Load when nothing was ever saved.
var ErrNotExists = fmt.Errorf("persistence data not exists")

// JSONFileService stores each value as a JSON file under baseDir.
type JSONFileService struct {
	baseDir string
}

func NewJSONFileService(baseDir string) *JSONFileService {
	return &JSONFileService{baseDir: baseDir}
}

func (s *JSONFileService) NewStore(prefix, id, tag string) Store {
	return &jsonFileStore{
		baseDir: s.baseDir,
		key:     fmt.Sprintf("%s:%s:%s", prefix, id, tag),
	}
}

type jsonFileStore struct {
	baseDir string
	key     string
}

var keySanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (s *jsonFileStore) filePath() string {
	safe := keySanitizer.ReplaceAllString(s.key, "_")
	return filepath.Join(s.baseDir, safe+".json")
}

func (s *jsonFileStore) Save(data interface{}) error {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	// Write-then-rename keeps the checkpoint file whole across crashes.
	tmp := s.filePath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath())
}

func (s *jsonFileStore) Load(data interface{}) error {
	raw, err := os.ReadFile(s.filePath())
	if os.IsNotExist(err) {
		return ErrNotExists
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, data)
}
