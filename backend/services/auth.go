package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"memorymaze/backend/apperr"
	"memorymaze/backend/config"
	"memorymaze/backend/models"
	"memorymaze/backend/storage"
	"memorymaze/backend/utils"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResult struct {
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    models.UserView `json:"user"`
}

type AuthService struct {
	users    storage.Users
	cfg      *config.Config
	validate *validator.Validate
	now      Clock
	hashCost int
}

func NewAuthService(users storage.Users, cfg *config.Config) *AuthService {
	return &AuthService{
		users:    users,
		cfg:      cfg,
		validate: validator.New(),
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

// Register creates an account. The first account ever created is an admin.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, credentialError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	var created *models.User
	err = s.users.UpdateUsers(ctx, func(users map[string]*models.User) error {
		if _, ok := users[in.Email]; ok {
			return apperr.Conflict("User already exists")
		}
		role := models.RoleUser
		if len(users) == 0 {
			role = models.RoleAdmin
		}
		created = &models.User{
			Email:     in.Email,
			Password:  string(hash),
			Role:      role,
			CreatedAt: s.now().UTC(),
		}
		created.ApplyDefaults()
		users[in.Email] = created
		return nil
	})
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}

	token, err := utils.GenerateJWTToken(created.Email, s.cfg)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &AuthResult{Message: "User registered successfully", Token: token, User: created.View()}, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, credentialError(err)
	}

	user, err := s.users.GetUser(ctx, in.Email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, apperr.Unauthorized("Invalid credentials")
	}

	if user.Role == "" || user.Profile == nil || user.Profile.Username == "" {
		user, err = s.users.UpdateUser(ctx, in.Email, backfillUser)
		if err != nil {
			return nil, storeErr(err, msgUserNotFound)
		}
	}

	token, err := utils.GenerateJWTToken(user.Email, s.cfg)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &AuthResult{Message: "Login successful", Token: token, User: user.View()}, nil
}

// backfillUser repairs records written before roles and usernames existed.
func backfillUser(u *models.User) error {
	if u.Profile != nil && u.Profile.Username == "" {
		u.Profile.Username = u.Profile.Name
		if u.Profile.Username == "" {
			u.Profile.Username = models.DefaultProfile(u.Email).Username
		}
	}
	u.ApplyDefaults()
	return nil
}

func credentialError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(msgInvalidRequest)
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return apperr.Validation("Email and password are required")
		}
	}
	switch fe := verrs[0]; {
	case fe.Field() == "Password" && fe.Tag() == "min":
		return apperr.Validation("Password must be at least 6 characters")
	case fe.Field() == "Email":
		return apperr.Validation("Invalid email address")
	default:
		return apperr.Validation(msgInvalidRequest)
	}
}
