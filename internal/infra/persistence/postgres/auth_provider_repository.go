package postgres

import (
	"context"
	"time"

	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/repository"
	"authsvc/internal/errors"
	"authsvc/internal/infra/persistence/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// authProviderRepository implements repository.AuthProviderRepository using GORM.
type authProviderRepository struct {
	db *gorm.DB
}

// NewAuthProviderRepository is the constructor for authProviderRepository.
func NewAuthProviderRepository(db *gorm.DB) repository.AuthProviderRepository {
	return &authProviderRepository{db: db}
}

func (repo *authProviderRepository) FindByID(ctx context.Context, id string) (*entity.AuthProvider, error) {
	var linkM model.AuthProviderModel
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&linkM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAuthProviderNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to find auth provider")
	}

	return toAuthProviderDomain(&linkM), nil
}

// Upsert relies on the primary key on id: the first writer inserts, later writers only
// touch updated_at. The row is read back so callers see the user that actually owns it.
func (repo *authProviderRepository) Upsert(ctx context.Context, link *entity.AuthProvider) (*entity.AuthProvider, error) {
	linkM := fromAuthProviderDomain(link)

	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{"updated_at": time.Now()}),
		}).
		Create(linkM).Error
	if err != nil {
		return nil, translateWriteError(err, "failed to upsert auth provider")
	}

	var stored model.AuthProviderModel
	if err := repo.db.WithContext(ctx).Where("id = ?", link.ID).First(&stored).Error; err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to read upserted auth provider")
	}

	return toAuthProviderDomain(&stored), nil
}

func toAuthProviderDomain(data *model.AuthProviderModel) *entity.AuthProvider {
	return &entity.AuthProvider{
		ID:        data.ID,
		Provider:  entity.ProviderType(data.Provider),
		UserID:    data.UserID,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}

func fromAuthProviderDomain(data *entity.AuthProvider) *model.AuthProviderModel {
	return &model.AuthProviderModel{
		ID:        data.ID,
		Provider:  data.Provider.String(),
		UserID:    data.UserID,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}
