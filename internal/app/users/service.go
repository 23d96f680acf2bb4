package users

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/househealth/househealth-api/internal/domain"
	clockport "github.com/househealth/househealth-api/internal/ports/out/clock"
	"github.com/househealth/househealth-api/internal/ports/out/userrepo"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input beyond 72 bytes; reject instead of silently truncating.
	maxPasswordBytes = 72
)

// Service is the user directory: registration, lookup and profile updates.
type Service struct {
	repo userrepo.Repository
	clk  clockport.Clock

	newUserID func() domain.UserID

	// BcryptCost is the hashing cost used on registration.
	BcryptCost int
	Logger     *slog.Logger
}

func NewService(repo userrepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		repo: repo,
		clk:  clk,
		newUserID: func() domain.UserID {
			return domain.UserID(uuid.NewString())
		},
		BcryptCost: bcrypt.DefaultCost,
	}
}

// SetNewUserIDForTest overrides user ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewUserIDForTest(fn func() domain.UserID) {
	if fn != nil {
		s.newUserID = fn
	}
}

func (s *Service) RegisterUser(ctx context.Context, in RegisterUserInput) (domain.User, error) {
	displayName := domain.NormalizeHumanName(in.DisplayName)
	if displayName == "" {
		return domain.User{}, validationError("invalid displayName", "displayName", "must be non-empty")
	}
	email := strings.TrimSpace(in.Email)
	if err := validateEmail(email); err != nil {
		return domain.User{}, validationError("invalid email", "email", err.Error())
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return domain.User{}, validationError("invalid password", "password", "must be at least 8 characters")
	}
	if len(in.Password) > maxPasswordBytes {
		return domain.User{}, validationError("invalid password", "password", "must be at most 72 bytes")
	}
	if err := s.ensureEmailUnique(ctx, email, ""); err != nil {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.BcryptCost)
	if err != nil {
		return domain.User{}, err
	}

	u := domain.User{
		ID:           s.newUserID(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		SystemRole:   domain.SystemRoleUser,
		CreatedAt:    s.clk.Now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return domain.User{}, emailInUse()
		}
		return domain.User{}, err
	}
	s.logger().InfoContext(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

func (s *Service) GetUserByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, &Error{Status: 404, Code: "USER_NOT_FOUND", Message: "user not found", Kind: userrepo.ErrNotFound}
		}
		return domain.User{}, err
	}
	return u, nil
}

func (s *Service) UpdateMyProfile(ctx context.Context, id domain.UserID, in UpdateProfileInput) (domain.User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	if in.DisplayName.IsSpecified() {
		if in.DisplayName.IsNull() {
			return domain.User{}, validationError("invalid displayName", "displayName", "cannot be null")
		}
		name := domain.NormalizeHumanName(in.DisplayName.Value())
		if name == "" {
			return domain.User{}, validationError("invalid displayName", "displayName", "must be non-empty")
		}
		u.DisplayName = name
	}
	if in.Email.IsSpecified() {
		if in.Email.IsNull() {
			return domain.User{}, validationError("invalid email", "email", "cannot be null")
		}
		email := strings.TrimSpace(in.Email.Value())
		if err := validateEmail(email); err != nil {
			return domain.User{}, validationError("invalid email", "email", err.Error())
		}
		if err := s.ensureEmailUnique(ctx, email, u.ID); err != nil {
			return domain.User{}, err
		}
		u.Email = email
	}

	if err := s.repo.Update(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return domain.User{}, emailInUse()
		}
		return domain.User{}, err
	}
	return u, nil
}

// PromoteToAdmin grants the system administrator role. It is idempotent.
func (s *Service) PromoteToAdmin(ctx context.Context, id domain.UserID) (domain.User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if u.IsAdmin() {
		return u, nil
	}
	u.SystemRole = domain.SystemRoleAdmin
	if err := s.repo.Update(ctx, u); err != nil {
		return domain.User{}, err
	}
	s.logger().InfoContext(ctx, "user promoted to admin", "user_id", u.ID)
	return u, nil
}

// BootstrapAdmins promotes every registered user whose email is listed.
// Unknown emails are skipped; they are promoted on a later start once registered.
func (s *Service) BootstrapAdmins(ctx context.Context, emails []string) error {
	for _, email := range emails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		u, err := s.repo.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, userrepo.ErrNotFound) {
				s.logger().DebugContext(ctx, "admin email not registered yet", "email", email)
				continue
			}
			return err
		}
		if _, err := s.PromoteToAdmin(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ensureEmailUnique(ctx context.Context, email string, exclude domain.UserID) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID == exclude {
		return nil
	}
	return emailInUse()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	// Ensure no "Name <email@x>" format sneaks in.
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}

func validationError(msg, field, detail string) *Error {
	return &Error{Status: 422, Code: "VALIDATION_ERROR", Message: msg, Details: map[string]any{field: detail}}
}

func emailInUse() *Error {
	return &Error{Status: 409, Code: "EMAIL_ALREADY_IN_USE", Message: "email address is already in use", Kind: userrepo.ErrEmailTaken}
}
