package identity

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
)

var ErrSelfImpersonation = errors.New("cannot impersonate yourself")

// UserGetter finds users by ID.
type UserGetter interface {
	GetUser(ctx context.Context, id string) (user.User, error)
}

// Service exposes the impersonation actions to the request handlers.
type Service struct {
	store  *Store
	users  UserGetter
	logger core.Logger
}

func NewService(store *Store, users UserGetter, logger core.Logger) *Service {
	return &Service{store: store, users: users, logger: logger}
}

// Start makes p act as the user targetID until Stop.
// Non-admins get ErrForbidden before the target is looked up.
func (svc *Service) Start(ctx context.Context, p Principal, targetID string) (Record, error) {
	if !p.IsAdmin() {
		return Record{}, ErrForbidden
	}
	targetID = core.CleanString(targetID, true /* lower */)
	if targetID == p.ID {
		return Record{}, core.NewValidationError(ErrSelfImpersonation, core.FieldError{Field: "user_id", Error: ErrSelfImpersonation.Error()})
	}

	target, err := svc.users.GetUser(ctx, targetID)
	if err != nil {
		return Record{}, errors.Wrap(err, "finding impersonation target")
	}

	rec, err := svc.store.Start(p, target.ID, target.DisplayName())
	if err != nil {
		return Record{}, err
	}
	svc.logger.Info(
		fmt.Sprintf("impersonation started: admin %s as user %s", p.ID, target.ID),
		map[string]interface{}{"admin_id": p.ID, "target_user_id": target.ID},
		p,
	)
	return rec, nil
}

func (svc *Service) Stop(p Principal) {
	if rec, ok := svc.store.Current(p); ok {
		svc.store.Stop(p)
		svc.logger.Info(
			fmt.Sprintf("impersonation stopped: admin %s as user %s", p.ID, rec.TargetUserID),
			map[string]interface{}{"admin_id": p.ID, "target_user_id": rec.TargetUserID},
			p,
		)
	}
}

func (svc *Service) Current(p Principal) (Record, bool) {
	return svc.store.Current(p)
}
