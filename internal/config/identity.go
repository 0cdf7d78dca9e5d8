package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UserID returns the local user id stored in dir/user_id, creating a
// random one on first use.
func UserID(dir string) (string, error) {
	path := filepath.Join(dir, "user_id")

	data, err := os.ReadFile(path)
	if err == nil {
		if id, perr := uuid.Parse(strings.TrimSpace(string(data))); perr == nil {
			return id.String(), nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read user id: %w", err)
	}

	id := uuid.NewString()
	if err := atomicWrite(path, []byte(id+"\n")); err != nil {
		return "", fmt.Errorf("failed to write user id: %w", err)
	}
	return id, nil
}
