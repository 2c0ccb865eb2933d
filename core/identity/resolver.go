package identity

// Resolver combines the authenticated principal with the impersonation Store.
type Resolver struct {
	store *Store
}

func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the EffectiveIdentity of `p`. It never mutates the Store.
func (r *Resolver) Resolve(p *Principal) (EffectiveIdentity, error) {
	if p == nil || p.ID == "" {
		return EffectiveIdentity{}, ErrUnauthenticated
	}

	ident := EffectiveIdentity{
		UserID:            p.ID,
		PrincipalID:       p.ID,
		AuthorizationRole: p.Role,
	}
	if rec, ok := r.store.Current(*p); ok {
		ident.UserID = rec.TargetUserID
		ident.IsImpersonating = true
		ident.TargetDisplayName = rec.TargetDisplayName
	}
	return ident, nil
}
