package user

import "time"

type User struct {
	ID            int       `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	CodeHash      string    `json:"-"`
	CodeExpires   time.Time `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

type VerifyEmailRequest struct {
	Email string `json:"email"`
}

type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type LoginResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"token"`
	UserID      int    `json:"userId"`
	Email       string `json:"email"`
}
