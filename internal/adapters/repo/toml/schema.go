package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version       int                 `toml:"version"`
	Device        deviceSchema        `toml:"device"`
	Notifications notificationsSchema `toml:"notifications"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported preferences schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type deviceSchema struct {
	ID string `toml:"id"`
}

type notificationsSchema struct {
	Enabled     bool   `toml:"enabled"`
	PushTokenID string `toml:"push_token_id,omitempty"`
}
