package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/herodotus/pkg/config"
)

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrInvalidWorkflow  = errors.New("invalid workflow")
)

// Workflow is a named list of step settings run one after another.
type Workflow struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Steps     []config.Settings `json:"steps"`
	CreatedAt time.Time         `json:"created_at"`
}

// Validate checks the structural shape only. Step settings are checked when
// the workflow runs.
func (w Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidWorkflow)
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrInvalidWorkflow)
	}
	return nil
}

// WorkflowStore persists workflows as one JSON file.
type WorkflowStore struct {
	mu   sync.Mutex
	path string
}

func NewWorkflowStore(path string) *WorkflowStore {
	return &WorkflowStore{path: path}
}

func (s *WorkflowStore) load() ([]Workflow, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var wfs []Workflow
	if err := json.Unmarshal(data, &wfs); err != nil {
		return nil, fmt.Errorf("decode workflows %s: %w", s.path, err)
	}
	for _, w := range wfs {
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("workflow %s in %s: %w", w.ID, s.path, err)
		}
	}
	return wfs, nil
}

func (s *WorkflowStore) save(wfs []Workflow) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(wfs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *WorkflowStore) List() ([]Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wfs, err := s.load()
	if wfs == nil && err == nil {
		wfs = []Workflow{}
	}
	return wfs, err
}

func (s *WorkflowStore) Get(id string) (Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wfs, err := s.load()
	if err != nil {
		return Workflow{}, err
	}
	for _, w := range wfs {
		if w.ID == id {
			return w, nil
		}
	}
	return Workflow{}, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
}

// Save inserts w, assigning an ID when it has none, or replaces the stored
// workflow with the same ID.
func (s *WorkflowStore) Save(w Workflow) (Workflow, error) {
	if err := w.Validate(); err != nil {
		return Workflow{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wfs, err := s.load()
	if err != nil {
		return Workflow{}, err
	}

	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	replaced := false
	for i := range wfs {
		if wfs[i].ID == w.ID {
			wfs[i] = w
			replaced = true
			break
		}
	}
	if !replaced {
		wfs = append(wfs, w)
	}
	if err := s.save(wfs); err != nil {
		return Workflow{}, err
	}
	return w, nil
}

func (s *WorkflowStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wfs, err := s.load()
	if err != nil {
		return err
	}
	for i, w := range wfs {
		if w.ID == id {
			return s.save(append(wfs[:i], wfs[i+1:]...))
		}
	}
	return fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
}
