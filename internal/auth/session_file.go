package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"signscribe/internal/fileutil"
)

// SessionFile persists an identity between CLI invocations.
type SessionFile struct {
	Path string
}

// Load returns the stored identity, or false when none is saved.
func (f SessionFile) Load() (Identity, bool, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, fmt.Errorf("read session: %w", err)
	}
	var identity Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return Identity{}, false, fmt.Errorf("decode session: %w", err)
	}
	return identity, identity.Token != "", nil
}

// Save writes identity, or removes the file when identity is nil. It fits
// Session.OnSessionChange directly.
func (f SessionFile) Save(identity *Identity) error {
	if identity == nil {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove session: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("ensure session dir: %w", err)
	}
	raw, err := json.MarshalIndent(identity, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return fileutil.WriteFileAtomic(f.Path, raw, 0o600)
}
