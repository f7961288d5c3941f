package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"tasknest/backend/logging"
	"tasknest/backend/models"
	"tasknest/backend/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Insert(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, username, hashedPassword string) error
}

type UserService struct {
	store     UserStore
	blackList map[string]bool
}

func NewUserService(store UserStore, blackList map[string]bool) *UserService {
	return &UserService{store: store, blackList: blackList}
}

// RegisterUser sanitizuje unos, validira lozinku i čuva korisnika.
func (s *UserService) RegisterUser(ctx context.Context, user models.User) (*models.User, error) {
	exists, err := s.store.ExistsByUsername(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: user with username already exists", models.ErrConflict)
	}

	// Sanitizacija unosa
	user.Username = html.EscapeString(user.Username)
	user.Name = html.EscapeString(user.Name)
	user.LastName = html.EscapeString(user.LastName)
	user.Email = html.EscapeString(user.Email)

	if len(user.Username) < 3 || len(user.Username) > 20 {
		return nil, fmt.Errorf("%w: username must be between 3 and 20 characters", models.ErrValidation)
	}

	if err := s.ValidatePassword(user.Password); err != nil {
		return nil, err
	}

	hashedPassword, err := utils.HashPassword(user.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %v", err)
	}
	user.Password = hashedPassword

	if user.Role == "" {
		user.Role = "member"
	}
	user.IsActive = true
	user.CreatedAt = time.Now()

	created, err := s.store.Insert(ctx, &user)
	if err != nil {
		return nil, err
	}

	logging.Logger.Infof("Event ID: USER_REGISTERED, Description: User %s registered", created.Username)
	created.Password = ""
	return created, nil
}

// ValidatePassword proverava minimalnu dužinu, veliko slovo, broj,
// specijalni karakter i da li je lozinka na black listi.
func (s *UserService) ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters long", models.ErrValidation)
	}

	hasUppercase := false
	for _, char := range password {
		if char >= 'A' && char <= 'Z' {
			hasUppercase = true
			break
		}
	}
	if !hasUppercase {
		return fmt.Errorf("%w: password must contain at least one uppercase letter", models.ErrValidation)
	}

	hasDigit := false
	for _, char := range password {
		if char >= '0' && char <= '9' {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return fmt.Errorf("%w: password must contain at least one number", models.ErrValidation)
	}

	specialChars := "!@#$%^&*.,"
	hasSpecial := false
	for _, char := range password {
		if strings.ContainsRune(specialChars, char) {
			hasSpecial = true
			break
		}
	}
	if !hasSpecial {
		return fmt.Errorf("%w: password must contain at least one special character", models.ErrValidation)
	}

	if s.blackList[password] {
		return fmt.Errorf("%w: password is too common, please choose a stronger one", models.ErrValidation)
	}

	return nil
}

// LoginUser proverava kredencijale i izdaje JWT token.
func (s *UserService) LoginUser(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return nil, "", err
	}

	if err := utils.CheckPassword(user.Password, password); err != nil {
		return nil, "", fmt.Errorf("%w: invalid password", models.ErrAccessDenied)
	}

	if !user.IsActive {
		return nil, "", fmt.Errorf("%w: user is not active", models.ErrAccessDenied)
	}

	token, err := utils.GenerateToken(user.Username, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %v", err)
	}

	logging.Logger.Infof("Event ID: USER_LOGIN, Description: User %s logged in", username)
	user.Password = ""
	return user, token, nil
}

// ChangePassword menja lozinku korisniku.
func (s *UserService) ChangePassword(ctx context.Context, username, oldPassword, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return fmt.Errorf("%w: new password and confirmation do not match", models.ErrValidation)
	}

	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	if err := utils.CheckPassword(user.Password, oldPassword); err != nil {
		return fmt.Errorf("%w: old password is incorrect", models.ErrAccessDenied)
	}

	if err := s.ValidatePassword(newPassword); err != nil {
		return err
	}

	hashedNewPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %v", err)
	}

	if err := s.store.UpdatePassword(ctx, username, hashedNewPassword); err != nil {
		return err
	}

	logging.Logger.Infof("Event ID: PASSWORD_CHANGED, Description: Password changed for user %s", username)
	return nil
}

// GetUserByUsername vraća korisnika bez lozinke.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}
