package impl

import (
	"context"
	"log/slog"

	"authsvc/config"
	"authsvc/internal/domain/entity"
	domainerrors "authsvc/internal/domain/errors"
	"authsvc/internal/domain/repository"
	"authsvc/internal/domain/service"
	"authsvc/internal/errors"

	"go.uber.org/fx"
)

// linkAttempts bounds how often a conflicting link transaction is replayed.
const linkAttempts = 2

// errLinkConflict signals that a concurrent writer linked the identity to another user first.
var errLinkConflict = errors.New("identity linked concurrently")

// IdentityLinker resolves an external identity to a local user, creating the
// user and the provider link when needed.
type IdentityLinker struct {
	txManager    repository.TransactionManager
	mergeByEmail string
	logger       *slog.Logger
}

// IdentityLinkerParams holds dependencies for IdentityLinker, injected by Fx.
type IdentityLinkerParams struct {
	fx.In

	TxManager repository.TransactionManager
	Config    *config.Config
	Logger    *slog.Logger
}

// NewIdentityLinker is the constructor for IdentityLinker.
func NewIdentityLinker(params IdentityLinkerParams) *IdentityLinker {
	mergeByEmail := config.MergeByEmailVerified
	if params.Config != nil && params.Config.Auth != nil && params.Config.Auth.MergeByEmail != "" {
		mergeByEmail = params.Config.Auth.MergeByEmail
	}

	return &IdentityLinker{
		txManager:    params.TxManager,
		mergeByEmail: mergeByEmail,
		logger:       params.Logger,
	}
}

func (l *IdentityLinker) log(ctx context.Context) *slog.Logger {
	return requestLogger(ctx, l.logger)
}

// UpsertUserWithToken normalizes the provider profile behind token and returns the linked user.
func (l *IdentityLinker) UpsertUserWithToken(
	ctx context.Context,
	provider service.OAuthProvider,
	token *service.ProviderToken,
) (*entity.User, error) {
	identity, err := provider.NormalizeIdentity(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to normalize provider identity")
	}
	if identity == nil || identity.ProviderID == "" {
		return nil, errors.Wrap(domainerrors.ErrBadPayload, "provider identity has no subject")
	}
	if identity.Email != nil {
		identity.Email = entity.StringPtr(normalizeEmail(*identity.Email))
	}

	return l.Link(ctx, provider.Provider(), identity)
}

// Link attaches identity to a user. A transaction that loses a race on the
// unique keys is rolled back and replayed, which then resolves to the winner's user.
func (l *IdentityLinker) Link(ctx context.Context, providerType entity.ProviderType, identity *service.ExternalIdentity) (*entity.User, error) {
	var (
		user *entity.User
		err  error
	)

	for attempt := 1; attempt <= linkAttempts; attempt++ {
		err = l.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			var linkErr error
			user, linkErr = l.linkInTx(ctx, repoFactory, providerType, identity)

			return linkErr
		})
		if err == nil || !isLinkConflict(err) {
			break
		}

		l.log(ctx).Warn("Identity link conflict, retrying",
			slog.String("provider", providerType.String()),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	}

	if err != nil {
		if errors.Is(err, errLinkConflict) {
			return nil, errors.Wrap(domainerrors.ErrDuplicate, "identity is linked to another user")
		}

		return nil, errors.Wrap(err, "failed to link identity")
	}

	return user, nil
}

func (l *IdentityLinker) linkInTx(
	ctx context.Context,
	repoFactory repository.RepositoryFactory,
	providerType entity.ProviderType,
	identity *service.ExternalIdentity,
) (*entity.User, error) {
	userRepo := repoFactory.UserRepo()
	linkRepo := repoFactory.AuthProviderRepo()

	user, emailOwner, err := l.resolveUser(ctx, userRepo, linkRepo, identity)
	if err != nil {
		return nil, err
	}

	if user != nil {
		applyIdentity(user, identity, emailOwner)

		if err := userRepo.Update(ctx, user); err != nil {
			return nil, errors.Wrap(err, "failed to update linked user")
		}

		if _, err := repoFactory.EmailVerificationRepo().DeleteByUserID(ctx, user.ID); err != nil {
			return nil, errors.Wrap(err, "failed to clear pending verification")
		}
	} else {
		user = &entity.User{
			Name:          identity.Name,
			ProfileImage:  identity.ProfileImage,
			EmailVerified: true,
			Role:          entity.RoleUser,
		}
		// An address already owned by an account we may not merge into stays with that account.
		if emailOwner == nil {
			user.Email = identity.Email
		}

		if err := userRepo.Create(ctx, user); err != nil {
			return nil, errors.Wrap(err, "failed to create user for identity")
		}
	}

	link, err := linkRepo.Upsert(ctx, &entity.AuthProvider{
		ID:       identity.ProviderID,
		Provider: providerType,
		UserID:   user.ID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert auth provider")
	}
	if link.UserID != user.ID {
		return nil, errLinkConflict
	}

	return user, nil
}

// resolveUser finds the user behind identity. emailOwner is the account that
// already holds the identity's email, if any, whether or not it was chosen.
func (l *IdentityLinker) resolveUser(
	ctx context.Context,
	userRepo repository.UserRepository,
	linkRepo repository.AuthProviderRepository,
	identity *service.ExternalIdentity,
) (user, emailOwner *entity.User, err error) {
	link, err := linkRepo.FindByID(ctx, identity.ProviderID)
	switch {
	case err == nil:
		// Locked because the user is written back below.
		user, err = userRepo.FindByIDForUpdate(ctx, link.UserID)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to load linked user")
		}
	case errors.Is(err, repository.ErrAuthProviderNotFound):
	default:
		return nil, nil, errors.Wrap(err, "failed to find auth provider")
	}

	if identity.Email == nil {
		return user, nil, nil
	}

	emailOwner, err = userRepo.FindByEmail(ctx, *identity.Email)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrUserNotFound):
		emailOwner = nil
	default:
		return nil, nil, errors.Wrap(err, "failed to find user by email")
	}

	if user == nil && emailOwner != nil && l.mayMerge(identity) {
		user, err = userRepo.FindByIDForUpdate(ctx, emailOwner.ID)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to lock email owner")
		}
		emailOwner = user
	}

	return user, emailOwner, nil
}

func (l *IdentityLinker) mayMerge(identity *service.ExternalIdentity) bool {
	switch l.mergeByEmail {
	case config.MergeByEmailAlways:
		return true
	case config.MergeByEmailNever:
		return false
	default:
		return identity.EmailVerified
	}
}

// applyIdentity refreshes the provider-owned fields of user.
func applyIdentity(user *entity.User, identity *service.ExternalIdentity, emailOwner *entity.User) {
	if identity.Name != "" {
		user.Name = identity.Name
	}
	if identity.ProfileImage != nil {
		user.ProfileImage = identity.ProfileImage
	}
	if user.Email == nil && (emailOwner == nil || emailOwner.ID == user.ID) {
		user.Email = identity.Email
	}
	user.EmailVerified = true
}

func isLinkConflict(err error) bool {
	return errors.Is(err, errLinkConflict) || errors.Is(err, domainerrors.ErrDuplicate)
}
