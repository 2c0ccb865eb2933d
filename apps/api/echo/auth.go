package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
)

const (
	contextTokenKey     = "userToken"
	contextPrincipalKey = "principal"
	contextIdentityKey  = "identity"
	contextUserKey      = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
// StandardClaims.Id holds the login session id; it survives token refreshes.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
}

func (c Claims) Principal() *identity.Principal {
	return &identity.Principal{
		ID:        c.Subject,
		Role:      c.Role,
		SessionID: c.Id,
		Username:  c.Username,
		Email:     c.Email,
	}
}

type tokenIssuer struct {
	conf *core.Config
	key  []byte
}

func newTokenIssuer(conf *core.Config) *tokenIssuer {
	return &tokenIssuer{conf: conf, key: []byte(conf.SecretKey)}
}

func (ti *tokenIssuer) jwtConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    ti.key,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// userClaims returns the claims of a new token for `usr`.
// A login (no sessionID) starts a new session.
func (ti *tokenIssuer) userClaims(usr user.User, sessionID string, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sessionID,
			Issuer:    ti.conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(ti.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// generate signs the claims into a JWT token string.
func (ti *tokenIssuer) generate(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (ti *tokenIssuer) authenticate(uname, pwd string, svc user.Service) (*Claims, error) {
	usr, err := svc.GetByUsernameOrEmail(uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.Active() {
		return nil, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return ti.userClaims(usr, ""), nil
}

func (ti *tokenIssuer) refresh(ctx echo.Context, svc user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.Active() {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := ti.generate(ti.userClaims(usr, claims.Id, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextPrincipal(ctx echo.Context) (identity.Principal, error) {
	if p, ok := ctx.Get(contextPrincipalKey).(identity.Principal); ok {
		return p, nil
	}
	return identity.Principal{}, identity.ErrUnauthenticated
}

func getContextIdentity(ctx echo.Context) (identity.EffectiveIdentity, error) {
	if ident, ok := ctx.Get(contextIdentityKey).(identity.EffectiveIdentity); ok {
		return ident, nil
	}
	return identity.EffectiveIdentity{}, identity.ErrUnauthenticated
}

// getContextUser returns the principal's own user (never the impersonated one).
func getContextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	usr, err := svc.GetByID(claims.Subject)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}
