package user

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const codeTTL = 15 * time.Minute

var (
	ErrInvalidEmail = errors.New("email is not part of the campus domain")
	ErrInvalidCode  = errors.New("invalid verification code")
	ErrCodeExpired  = errors.New("verification code expired")
)

// Store is the slice of Repository the service needs; an interface so tests
// can substitute an in-memory double.
type Store interface {
	UpsertVerification(ctx context.Context, email, codeHash string, expires time.Time) (int, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	MarkVerified(ctx context.Context, id int) error
}

type Service struct {
	repo        Store
	mailer      Mailer
	jwtSecret   string
	emailDomain string
}

type MyJWTClaims struct {
	UserID int    `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func NewService(repo Store, mailer Mailer, secret, emailDomain string) *Service {
	return &Service{
		repo:        repo,
		mailer:      mailer,
		jwtSecret:   secret,
		emailDomain: emailDomain,
	}
}

// RequestCode generates a 6-digit verification code for the address, stores
// its hash with a 15-minute expiry (creating the user lazily on first
// contact), and mails the code. The plaintext code is returned so the dev
// handler can echo it; production handlers must not expose it.
func (s *Service) RequestCode(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.HasSuffix(email, "@"+s.emailDomain) {
		return "", ErrInvalidEmail
	}

	code, err := generateCode()
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	if _, err := s.repo.UpsertVerification(ctx, email, string(hash), time.Now().Add(codeTTL)); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}

	if err := s.mailer.SendVerificationCode(ctx, email, code); err != nil {
		return "", err
	}

	return code, nil
}

// VerifyCode checks the submitted code against the stored hash, marks the
// user verified and issues a bearer token.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (*LoginResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if u.CodeHash == "" {
		return nil, ErrInvalidCode
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.CodeHash), []byte(code)); err != nil {
		return nil, ErrInvalidCode
	}
	if time.Now().After(u.CodeExpires) {
		return nil, ErrCodeExpired
	}

	if err := s.repo.MarkVerified(ctx, u.ID); err != nil {
		return nil, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, MyJWTClaims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "unimarket",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)),
		},
	})

	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Message:     "Email verified successfully",
		AccessToken: ss,
		UserID:      u.ID,
		Email:       u.Email,
	}, nil
}

func (s *Service) ValidateToken(tokenString string) (int, string, error) {
	claims := &MyJWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})

	if err != nil || !token.Valid {
		return 0, "", fmt.Errorf("invalid token")
	}

	return claims.UserID, claims.Email, nil
}

func generateCode() (string, error) {
	// 6-digit code, 100000..999999
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
