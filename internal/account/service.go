// Package account runs the account lifecycle: registration with emailed
// activation codes, sign-in, password changes and code-based resets.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/safar/agrimarket/internal/audit"
	"github.com/safar/agrimarket/internal/auth"
	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/identity"
	"github.com/safar/agrimarket/internal/models"
	"github.com/safar/agrimarket/internal/notify"
	"github.com/safar/agrimarket/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const DefaultOTPTTL = 3 * time.Hour

type Service struct {
	db       *sql.DB
	notifier notify.Notifier
	tokens   *auth.TokenIssuer
	provider identity.Provider
	audit    audit.Recorder
	logger   *zap.Logger
	now      func() time.Time
	otpTTL   time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithOTPTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

func WithAudit(r audit.Recorder) Option {
	return func(s *Service) { s.audit = r }
}

func WithIdentityProvider(p identity.Provider) Option {
	return func(s *Service) { s.provider = p }
}

func NewService(db *sql.DB, notifier notify.Notifier, tokens *auth.TokenIssuer, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:       db,
		notifier: notifier,
		tokens:   tokens,
		audit:    audit.Nop{},
		logger:   logger,
		now:      time.Now,
		otpTTL:   DefaultOTPTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type RegistrationResult struct {
	User           *models.User `json:"user"`
	ActivationSent bool         `json:"activation_sent"`
}

type ActivationResult struct {
	AlreadyActive bool `json:"already_active"`
}

// Session is what a successful sign-in hands back to the client.
type Session struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *models.User `json:"user"`
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: malformed email %q", ErrInvalidInput, email)
	}
	return email, nil
}

func validRegistrationRole(role string) bool {
	return role == "" || role == models.RoleProducer || role == models.RoleConsumer
}

func (s *Service) issueCode(ctx context.Context, q database.Querier, userID int64) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	if err := store.SetOTP(ctx, q, userID, code, s.now()); err != nil {
		return "", err
	}
	return code, nil
}

func (s *Service) dispatch(ctx context.Context, channel notify.Channel, destination, code string, kind notify.Kind) error {
	return s.notifier.SendCode(ctx, notify.Message{
		Channel:     channel,
		Destination: destination,
		Code:        code,
		Kind:        kind,
		ValidFor:    s.otpTTL,
	})
}

// Register creates an inactive account and mails its activation code. The
// account is committed before the mail goes out; a delivery failure is
// reported through ActivationSent and the client may ask for a resend.
func (s *Service) Register(ctx context.Context, reg Registration) (*RegistrationResult, error) {
	email, err := normalizeEmail(reg.Email)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(reg.Password); err != nil {
		return nil, err
	}
	if !validRegistrationRole(reg.Role) {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidInput, reg.Role)
	}

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, err
	}
	issuedAt := s.now()

	user, err := store.CreateUser(ctx, s.db, store.NewUser{
		Email:          email,
		PasswordHash:   hash,
		FirstName:      reg.FirstName,
		LastName:       reg.LastName,
		Role:           reg.Role,
		OTPCode:        &code,
		OTPGeneratedAt: &issuedAt,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.ActionRegistered, user.ID, user.ID, bson.M{"role": user.Role})

	result := &RegistrationResult{User: user, ActivationSent: true}
	if err := s.dispatch(ctx, notify.ChannelEmail, email, code, notify.KindActivation); err != nil {
		s.logger.Warn("activation mail not sent",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
		result.ActivationSent = false
	}

	return result, nil
}

func (s *Service) ResendActivation(ctx context.Context, email string) error {
	var user *models.User
	var code string

	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		user, err = store.LockUserByEmail(ctx, tx, strings.TrimSpace(email))
		if err != nil {
			return err
		}
		if user.IsActive {
			return ErrAlreadyActive
		}
		code, err = s.issueCode(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return err
	}

	if err := s.dispatch(ctx, notify.ChannelEmail, user.Email, code, notify.KindActivation); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}

// Activate consumes an activation code. A matching code on an account that is
// already active and verified is consumed and reported as a no-op.
func (s *Service) Activate(ctx context.Context, email, code string) (*ActivationResult, error) {
	var result ActivationResult
	var userID int64

	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		result = ActivationResult{}

		user, err := store.LockUserByEmail(ctx, tx, strings.TrimSpace(email))
		if err != nil {
			return err
		}
		userID = user.ID

		if !codeMatches(user.OTPCode, code) {
			return ErrInvalidCode
		}

		if user.IsActive && user.VerifiedEmail {
			result.AlreadyActive = true
			return store.ClearOTP(ctx, tx, user.ID)
		}

		if codeExpired(user.OTPGeneratedAt, s.now(), s.otpTTL) {
			return ErrExpiredCode
		}

		return store.ActivateUser(ctx, tx, user.ID)
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyActive {
		s.audit.Record(ctx, audit.ActionActivated, userID, userID, nil)
	}
	return &result, nil
}

func (s *Service) session(user *models.User) (*Session, error) {
	pair, err := s.tokens.Issue(auth.Subject{UserID: user.ID, Role: user.Role, Staff: user.IsStaff})
	if err != nil {
		return nil, err
	}
	return &Session{Access: pair.Access, Refresh: pair.Refresh, User: user}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := store.GetUserByEmail(ctx, s.db, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactive
	}

	return s.session(user)
}

func (s *Service) RefreshToken(ctx context.Context, refresh string) (string, error) {
	return s.tokens.Refresh(refresh)
}

// GoogleLogin signs in through the identity provider, creating the account on
// first use. New accounts start active with no usable password.
func (s *Service) GoogleLogin(ctx context.Context, code string) (*Session, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no identity provider configured", identity.ErrUpstream)
	}

	ident, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		existing, err := store.LockUserByEmail(ctx, tx, ident.Email)
		if errors.Is(err, database.ErrUserNotFound) {
			var created bool
			user, created, err = store.CreateUserIfAbsent(ctx, tx, store.NewUser{
				Email:          ident.Email,
				FirstName:      ident.FirstName,
				LastName:       ident.LastName,
				GoogleID:       optional(ident.ExternalID),
				ProfilePicture: optional(ident.AvatarURL),
				IsActive:       true,
				VerifiedEmail:  ident.Verified,
			})
			if err != nil || created {
				return err
			}
			// Another login for the same email created the row first.
			existing, err = store.LockUserByEmail(ctx, tx, ident.Email)
		}
		if err != nil {
			return err
		}

		user, err = store.ApplyExternalProfile(ctx, tx, existing.ID, store.ExternalProfile{
			FirstName:      ident.FirstName,
			LastName:       ident.LastName,
			GoogleID:       ident.ExternalID,
			ProfilePicture: ident.AvatarURL,
			VerifiedEmail:  ident.Verified,
			Activate:       ident.Verified,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInactive
	}

	s.audit.Record(ctx, audit.ActionGoogleLogin, user.ID, user.ID, nil)
	return s.session(user)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := store.GetUser(ctx, s.db, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}

	if err := s.setPassword(ctx, userID, newPassword); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.ActionPasswordChanged, userID, userID, nil)
	return nil
}

// SetPassword replaces the password without the old one, for accounts
// created through an identity provider.
func (s *Service) SetPassword(ctx context.Context, userID int64, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	if err := s.setPassword(ctx, userID, newPassword); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.ActionPasswordChanged, userID, userID, nil)
	return nil
}

func (s *Service) setPassword(ctx context.Context, userID int64, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return store.SetPasswordHash(ctx, s.db, userID, hash)
}

func lockByIdentifier(ctx context.Context, tx *sql.Tx, identifier string) (*models.User, error) {
	if identifierChannel(identifier) == notify.ChannelEmail {
		return store.LockUserByEmail(ctx, tx, identifier)
	}
	return store.LockUserByPhone(ctx, tx, identifier)
}

// RequestPasswordReset stores a fresh reset code for the active account
// behind an email address or phone number and sends it over the matching
// channel. Accounts still awaiting activation get ErrInactive.
func (s *Service) RequestPasswordReset(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("%w: identifier required", ErrInvalidInput)
	}
	channel := identifierChannel(identifier)

	var code string
	var destination string
	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		user, err := lockByIdentifier(ctx, tx, identifier)
		if err != nil {
			return err
		}
		// The pending activation code must survive a reset request.
		if !user.IsActive {
			return ErrInactive
		}

		destination = user.Email
		if channel != notify.ChannelEmail && user.PhoneNumber != nil {
			destination = *user.PhoneNumber
		}

		code, err = s.issueCode(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return err
	}

	if err := s.dispatch(ctx, channel, destination, code, notify.KindPasswordReset); err != nil {
		if errors.Is(err, notify.ErrNotImplemented) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password if code is the pending reset code.
// With an identifier the code is checked against that account only. Without
// one the code is looked up among active accounts and must match exactly one.
func (s *Service) ConfirmPasswordReset(ctx context.Context, identifier, code, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}

	identifier = strings.TrimSpace(identifier)
	var userID int64

	err = database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var user *models.User

		if identifier != "" {
			u, err := lockByIdentifier(ctx, tx, identifier)
			if errors.Is(err, database.ErrUserNotFound) {
				return ErrInvalidCode
			}
			if err != nil {
				return err
			}
			user = u
		} else {
			matches, err := store.LockActiveUsersByOTP(ctx, tx, code)
			if err != nil {
				return err
			}
			if len(matches) != 1 {
				return ErrInvalidCode
			}
			user = &matches[0]
		}

		if !user.IsActive {
			return ErrInvalidCode
		}
		if err := checkCode(user, code, s.now(), s.otpTTL); err != nil {
			return err
		}

		userID = user.ID
		return store.SetPasswordHash(ctx, tx, user.ID, hash)
	})
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.ActionPasswordReset, userID, userID, nil)
	return nil
}

func (s *Service) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	return store.EmailExists(ctx, s.db, strings.TrimSpace(email))
}

func (s *Service) Profile(ctx context.Context, userID int64) (*models.User, error) {
	return store.GetUser(ctx, s.db, userID)
}

// UpdateProfile applies the present fields of update. Users may switch
// between producer and consumer but never grant themselves admin.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate) (*models.User, error) {
	if update.Role != nil && !validRegistrationRole(*update.Role) {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidInput, *update.Role)
	}
	return store.UpdateProfile(ctx, s.db, userID, update)
}

// EnsureAdmin creates the bootstrap administrator unless the email is
// already taken. It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}

	_, err = store.CreateUser(ctx, s.db, store.NewUser{
		Email:         email,
		PasswordHash:  hash,
		Role:          models.RoleAdmin,
		IsActive:      true,
		IsStaff:       true,
		VerifiedEmail: true,
	})
	if errors.Is(err, database.ErrDuplicateEmail) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) ListUsers(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	return store.ListUsers(ctx, s.db, page, pageSize)
}
