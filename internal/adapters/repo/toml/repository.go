package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/ports"
	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	prefsFileMode   = 0o600
	prefsDirMode    = 0o700
	tempFilePattern = ".preferences-*.toml.tmp"
)

// Repository keeps device preferences in a single TOML file. The device id is
// minted on first read and persisted so push registrations stay stable.
type Repository struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.PreferencesRepository = (*Repository)(nil)

func NewRepository(path string) (*Repository, error) {
	if path == "" {
		return nil, errors.New("preferences path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve preferences path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &Repository{path: absPath, mu: lockForPath(absPath)}, nil
}

func (r *Repository) Path() string {
	return r.path
}

func (r *Repository) Get(ctx context.Context) (domain.Preferences, error) {
	if err := ctx.Err(); err != nil {
		return domain.Preferences{}, err
	}

	r.mu.RLock()
	file, err := r.readSchema()
	r.mu.RUnlock()
	if err != nil {
		return domain.Preferences{}, err
	}
	if file.Device.ID != "" {
		return fromSchema(file), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err = r.readSchema()
	if err != nil {
		return domain.Preferences{}, err
	}
	if file.Device.ID == "" {
		file.Device.ID = uuid.NewString()
		if err := r.writeSchema(file); err != nil {
			return domain.Preferences{}, err
		}
	}

	return fromSchema(file), nil
}

// Save writes prefs. An empty DeviceID keeps the stored one.
func (r *Repository) Save(ctx context.Context, prefs domain.Preferences) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(prefs)
	if encoded.Device.ID == "" {
		encoded.Device.ID = file.Device.ID
	}
	if encoded.Device.ID == "" {
		encoded.Device.ID = uuid.NewString()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(encoded)
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read preferences file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode preferences file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, prefsDirMode); err != nil {
		return fmt.Errorf("create preferences directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode preferences file: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp preferences file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp preferences file: %w", err)
	}
	if err := tempFile.Chmod(prefsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp preferences file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp preferences file: %w", err)
	}

	if err := os.Rename(tempName, r.path); err != nil {
		return fmt.Errorf("replace preferences file: %w", err)
	}
	cleanup = false

	return nil
}

func toSchema(prefs domain.Preferences) fileSchema {
	return fileSchema{
		Version: currentSchemaVersion,
		Device:  deviceSchema{ID: prefs.DeviceID},
		Notifications: notificationsSchema{
			Enabled:     prefs.NotificationsEnabled,
			PushTokenID: string(prefs.PushTokenID),
		},
	}
}

func fromSchema(file fileSchema) domain.Preferences {
	return domain.Preferences{
		DeviceID:             file.Device.ID,
		NotificationsEnabled: file.Notifications.Enabled,
		PushTokenID:          domain.PushTokenID(file.Notifications.PushTokenID),
	}
}
