package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	users  map[string]*User
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*User)}
}

func (f *fakeStore) UpsertVerification(_ context.Context, email, codeHash string, expires time.Time) (int, error) {
	u, ok := f.users[email]
	if !ok {
		f.nextID++
		u = &User{ID: f.nextID, Email: email}
		f.users[email] = u
	}
	u.CodeHash = codeHash
	u.CodeExpires = expires
	return u.ID, nil
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) MarkVerified(_ context.Context, id int) error {
	for _, u := range f.users {
		if u.ID == id {
			u.EmailVerified = true
			u.CodeHash = ""
			return nil
		}
	}
	return ErrNotFound
}

type captureMailer struct {
	to   string
	code string
}

func (m *captureMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.to = to
	m.code = code
	return nil
}

func newTestService() (*Service, *fakeStore, *captureMailer) {
	store := newFakeStore()
	mailer := &captureMailer{}
	return NewService(store, mailer, "test-secret", "columbia.edu"), store, mailer
}

func TestRequestCode_RejectsForeignDomain(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.RequestCode(context.Background(), "someone@gmail.com"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestRequestCode_CreatesUserAndMailsCode(t *testing.T) {
	svc, store, mailer := newTestService()

	code, err := svc.RequestCode(context.Background(), "Abc123@columbia.edu")
	if err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}
	if mailer.to != "abc123@columbia.edu" || mailer.code != code {
		t.Fatalf("mailer got %q/%q", mailer.to, mailer.code)
	}

	u := store.users["abc123@columbia.edu"]
	if u == nil {
		t.Fatal("user row not created")
	}
	if u.CodeHash == code || u.CodeHash == "" {
		t.Fatal("code must be stored hashed")
	}
	if cost, err := bcrypt.Cost([]byte(u.CodeHash)); err != nil || cost < bcrypt.DefaultCost {
		t.Fatalf("hash cost %d (err %v), want at least %d", cost, err, bcrypt.DefaultCost)
	}
}

func TestVerifyCode_FullFlow(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	code, err := svc.RequestCode(ctx, "student@columbia.edu")
	if err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}

	res, err := svc.VerifyCode(ctx, "student@columbia.edu", code)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if res.AccessToken == "" {
		t.Fatal("no token issued")
	}

	userID, email, err := svc.ValidateToken(res.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if userID != res.UserID || email != "student@columbia.edu" {
		t.Fatalf("claims mismatch: %d %s", userID, email)
	}

	if !store.users["student@columbia.edu"].EmailVerified {
		t.Fatal("user not marked verified")
	}
	// The stored code is cleared; replaying it must fail.
	if _, err := svc.VerifyCode(ctx, "student@columbia.edu", code); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode on replay, got %v", err)
	}
}

func TestVerifyCode_WrongCode(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.RequestCode(ctx, "student@columbia.edu"); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	if _, err := svc.VerifyCode(ctx, "student@columbia.edu", "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestVerifyCode_Expired(t *testing.T) {
	svc, store, mailer := newTestService()
	ctx := context.Background()

	if _, err := svc.RequestCode(ctx, "student@columbia.edu"); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	store.users["student@columbia.edu"].CodeExpires = time.Now().Add(-time.Minute)

	if _, err := svc.VerifyCode(ctx, "student@columbia.edu", mailer.code); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
}

func TestVerifyCode_UnknownUser(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.VerifyCode(context.Background(), "ghost@columbia.edu", "123456"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	svc, _, _ := newTestService()
	if _, _, err := svc.ValidateToken("not-a-token"); err == nil {
		t.Fatal("expected error for garbage token")
	}
}
