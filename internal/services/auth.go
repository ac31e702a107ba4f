package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	userrepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/user"
	types "github.com/yungbote/microbrsoil-backend/internal/domain/user"
	"github.com/yungbote/microbrsoil-backend/internal/platform/apierr"
	"github.com/yungbote/microbrsoil-backend/internal/platform/ctxutil"
	"github.com/yungbote/microbrsoil-backend/internal/platform/dbctx"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

const minPasswordLen = 8

var errInvalidCredentials = errors.New("invalid email or password")

type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Register(ctx context.Context, email, password, confirmPassword string) (*types.User, error)
	Login(ctx context.Context, email, password string) (string, *types.User, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	AccessTTL() time.Duration
}

type authService struct {
	log       *logger.Logger
	users     userrepo.UserRepo
	secret    []byte
	accessTTL time.Duration
}

func NewAuthService(log *logger.Logger, users userrepo.UserRepo, jwtSecretKey string, accessTTL time.Duration) AuthService {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &authService{
		log:       log.With("service", "AuthService"),
		users:     users,
		secret:    []byte(jwtSecretKey),
		accessTTL: accessTTL,
	}
}

func (as *authService) AccessTTL() time.Duration { return as.accessTTL }

func (as *authService) Register(ctx context.Context, email, password, confirmPassword string) (*types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apierr.BadRequest("invalid_email", errors.New("a valid email is required"))
	}
	if len(password) < minPasswordLen {
		return nil, apierr.BadRequest("weak_password", fmt.Errorf("password must have at least %d characters", minPasswordLen))
	}
	if password != confirmPassword {
		return nil, apierr.BadRequest("password_mismatch", errors.New("passwords do not match"))
	}
	dbc := dbctx.Context{Ctx: ctx}
	exists, err := as.users.EmailExists(dbc, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apierr.New(http.StatusConflict, "email_taken", errors.New("email already registered"))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &types.User{
		Email:    email,
		Password: string(hash),
		Role:     types.RoleUser,
		IsActive: true,
	}
	if _, err := as.users.Create(dbc, []*types.User{u}); err != nil {
		if isUniqueViolation(err) {
			return nil, apierr.New(http.StatusConflict, "email_taken", errors.New("email already registered"))
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	as.log.Info("User registered", "user_id", u.ID)
	return u, nil
}

func (as *authService) Login(ctx context.Context, email, password string) (string, *types.User, error) {
	dbc := dbctx.Context{Ctx: ctx}
	u, err := as.users.GetByEmail(dbc, email)
	if err != nil {
		return "", nil, err
	}
	if u == nil || !u.IsActive {
		return "", nil, apierr.New(http.StatusUnauthorized, "invalid_credentials", errInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return "", nil, apierr.New(http.StatusUnauthorized, "invalid_credentials", errInvalidCredentials)
	}
	tok, err := as.generateAccessToken(u)
	if err != nil {
		return "", nil, fmt.Errorf("generate access token: %w", err)
	}
	if err := as.users.TouchLastLogin(dbc, u.ID); err != nil {
		as.log.Warn("touch last login failed", "user_id", u.ID, "error", err)
	}
	return tok, u, nil
}

func (as *authService) generateAccessToken(u *types.User) (string, error) {
	if len(as.secret) == 0 {
		return "", errors.New("JWT_SECRET_KEY is not configured")
	}
	now := time.Now()
	claims := AccessClaims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(as.secret)
}

// SetContextFromToken validates an access token and attaches its request data to ctx.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if len(as.secret) == 0 {
		return ctx, errors.New("JWT_SECRET_KEY is not configured")
	}
	claims := &AccessClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return as.secret, nil
	})
	if err != nil {
		return ctx, fmt.Errorf("invalid token: %w", err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("invalid token subject: %w", err)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Role:        claims.Role,
	}), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.TrimSpace(pgErr.Code) == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
