package auth

import (
	"papertrade-backend/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegisterInput for the register request body.
type RegisterInput struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

// LoginInput for the login request body.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionUserShape is the object stored in session and returned by /me.
type SessionUserShape struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// UserFinder abstracts user lookup by username+password (for production GORM or test doubles).
type UserFinder interface {
	FindByUsernameAndPassword(username, password string) (*models.User, error)
}

// GormUserFinder implements UserFinder using GORM and bcrypt.
type GormUserFinder struct{ DB *gorm.DB }

func (g *GormUserFinder) FindByUsernameAndPassword(username, password string) (*models.User, error) {
	return LoginUser(g.DB, LoginInput{Username: username, Password: password})
}

// RegisterUser creates an account with a bcrypt-hashed password and the
// starting cash grant. Usernames are unique.
func RegisterUser(db *gorm.DB, input RegisterInput, startingCash float64) (*models.User, error) {
	if input.Username == "" || input.Password == "" {
		return nil, ErrUsernamePasswordRequired
	}
	if input.Password != input.Confirmation {
		return nil, ErrPasswordMismatch
	}

	var existing models.User
	err := db.Where("username = ?", input.Username).First(&existing).Error
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := models.User{
		Username:     input.Username,
		PasswordHash: string(hash),
		Cash:         startingCash,
	}
	if err := db.Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// LoginUser finds user by username and verifies password. Returns user for session or error.
func LoginUser(db *gorm.DB, input LoginInput) (*models.User, error) {
	if input.Username == "" || input.Password == "" {
		return nil, ErrUsernamePasswordRequired
	}
	var u models.User
	if err := db.Where("username = ?", input.Username).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrInvalidUsername
		}
		return nil, err
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidUsername
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrIncorrectPassword
	}
	return &u, nil
}

// ChangePassword replaces the user's credential hash. The caller is expected
// to destroy the session afterwards so the user logs in again.
func ChangePassword(db *gorm.DB, userID uuid.UUID, password, confirmation string) error {
	if password == "" || password != confirmation {
		return ErrPasswordMismatch
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Model(&models.User{}).
		Where("user_id = ?", userID).
		Update("password_hash", string(hash)).Error
}

// VerifyUser validates session user and returns the shape for /me.
func VerifyUser(sessionUser interface{}) (*SessionUserShape, error) {
	if sessionUser == nil {
		return nil, ErrNotAuthenticated
	}
	m, ok := sessionUser.(map[string]interface{})
	if !ok {
		return nil, ErrNotAuthenticated
	}
	userID, _ := m["user_id"].(string)
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	username, _ := m["username"].(string)
	return &SessionUserShape{UserID: userID, Username: username}, nil
}
