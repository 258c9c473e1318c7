package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-runstr/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour

	tokenAccess  = "access"
	tokenRefresh = "refresh"

	refreshKeyPrefix = "auth:refresh:"
)

var (
	ErrMissingFields      = errors.New("email, display_name and password required")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
)

var (
	signTokenFn       = (*Service).signToken
	hashPasswordFn    = bcrypt.GenerateFromPassword
	parseWithClaimsFn = jwt.ParseWithClaims
)

// Service issues short-lived access tokens and single-use refresh tokens.
// Refresh tokens live in Redis until used or expired.
type Service struct {
	secret []byte
	db     db.Querier
	redis  *redis.Client
}

type Claims struct {
	UserID string `json:"user_id"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

func NewService(secret string, q db.Querier, rdb *redis.Client) *Service {
	return &Service{
		secret: []byte(secret),
		db:     q,
		redis:  rdb,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (Athlete, TokenResponse, error) {
	if req.Email == "" || req.DisplayName == "" || req.Password == "" {
		return Athlete{}, TokenResponse{}, ErrMissingFields
	}
	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Athlete{}, TokenResponse{}, err
	}

	athlete := Athlete{
		ID:           uuid.NewString(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Npub:         req.Npub,
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO athletes (id, email, display_name, password_hash, npub)
		VALUES ($1,$2,$3,$4,NULLIF($5,''))
		RETURNING created_at
	`, athlete.ID, athlete.Email, athlete.DisplayName, athlete.PasswordHash, athlete.Npub)
	if err := row.Scan(&athlete.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Athlete{}, TokenResponse{}, ErrEmailTaken
		}
		return Athlete{}, TokenResponse{}, err
	}

	tokens, err := s.GenerateTokens(ctx, athlete.ID)
	if err != nil {
		return Athlete{}, TokenResponse{}, err
	}
	return athlete, tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (Athlete, TokenResponse, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, COALESCE(npub,''), created_at
		FROM athletes WHERE email = $1
	`, req.Email)

	var athlete Athlete
	if err := row.Scan(&athlete.ID, &athlete.Email, &athlete.DisplayName, &athlete.PasswordHash, &athlete.Npub, &athlete.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Athlete{}, TokenResponse{}, ErrInvalidCredentials
		}
		return Athlete{}, TokenResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(athlete.PasswordHash), []byte(req.Password)); err != nil {
		return Athlete{}, TokenResponse{}, ErrInvalidCredentials
	}

	tokens, err := s.GenerateTokens(ctx, athlete.ID)
	if err != nil {
		return Athlete{}, TokenResponse{}, err
	}
	return athlete, tokens, nil
}

func (s *Service) GenerateTokens(ctx context.Context, userID string) (TokenResponse, error) {
	access, err := signTokenFn(s, userID, tokenAccess, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	resp := TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(accessTokenTTL.Seconds()),
	}

	refresh, err := signTokenFn(s, userID, tokenRefresh, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	// Without Redis there is nowhere to revoke from, so no refresh token is issued.
	if s.redis == nil {
		return resp, nil
	}
	if err := s.redis.Set(ctx, refreshKeyPrefix+refresh, userID, refreshTokenTTL).Err(); err != nil {
		return TokenResponse{}, fmt.Errorf("store refresh token: %w", err)
	}
	resp.RefreshToken = refresh
	return resp, nil
}

// ConsumeRefreshToken validates token and revokes it, returning its user.
func (s *Service) ConsumeRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token, tokenRefresh)
	if err != nil {
		return "", err
	}

	if s.redis == nil {
		return "", ErrTokenInvalid
	}
	userID, err := s.redis.GetDel(ctx, refreshKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenInvalid
	}
	if err != nil {
		return "", err
	}
	if userID != claims.UserID {
		return "", ErrTokenInvalid
	}
	return claims.UserID, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token, tokenAccess)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *Service) signToken(userID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token, tokenType string) (*Claims, error) {
	return parseClaims(token, s.secret, tokenType)
}

func parseClaims(token string, secret []byte, tokenType string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Type != tokenType || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
