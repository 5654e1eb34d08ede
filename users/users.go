package users

import "golang.org/x/crypto/bcrypt"

type User struct {
	ID           string `json:"id,omitempty"`       // Unique identifier, becomes the token subject
	Username     string `json:"username,omitempty"` // Unique login name
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"-"`                 // Hashed version of the user's password - never serialize
	Blocked      bool   `json:"blocked,omitempty"` // Blocked users cannot obtain tokens
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
