package registration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// NewBootID returns a fresh random id for this boot session. The backend
// uses it to deduplicate retried registrations from the same boot.
func NewBootID() string {
	return uuid.NewString()
}

// FileConfirmationStore keeps the confirmation id in a plain file so it
// survives restarts. An absent or unreadable file reads as "not registered".
type FileConfirmationStore struct {
	path string
	id   string
}

func NewFileConfirmationStore(path string) *FileConfirmationStore {
	s := &FileConfirmationStore{path: path}
	if b, err := os.ReadFile(path); err == nil {
		s.id = strings.TrimSpace(string(b))
	}
	return s
}

func (s *FileConfirmationStore) ConfirmationID() string { return s.id }

func (s *FileConfirmationStore) SetConfirmationID(id string) error {
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("confirmation store: %w", err)
	}
	if err := os.WriteFile(tmp, []byte(id+"\n"), 0o644); err != nil {
		return fmt.Errorf("confirmation store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("confirmation store: %w", err)
	}
	s.id = id
	return nil
}
