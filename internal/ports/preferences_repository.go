package ports

import (
	"context"

	"github.com/bnema/kintales-cli/internal/domain"
)

type PreferencesRepository interface {
	Get(ctx context.Context) (domain.Preferences, error)
	Save(ctx context.Context, prefs domain.Preferences) error
}
