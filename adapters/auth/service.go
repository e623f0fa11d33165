// Package auth 提供 email/密碼登入：帳號存在資料庫，
// refresh 與驗證 token 存在 Redis，access token 為 Ed25519 簽章的 JWT。
package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	redisAdapter "campusmart/adapters/redis"
	"campusmart/backend"
	"campusmart/models"
)

const (
	MinPasswordLength = 6
	MinNicknameLength = 2
	MaxNicknameLength = 20

	kindRefresh = "refresh"
	kindVerify  = "verify"
)

// ErrInvalidInput 表示註冊或登入資料格式錯誤
var ErrInvalidInput = errors.New("invalid input")

type Config struct {
	Issuer          string
	Audience        string
	PrivateKey      ed25519.PrivateKey
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	VerifyTokenTTL  time.Duration
	// AutoConfirm 為 true 時註冊後直接登入，不寄驗證信
	AutoConfirm bool
	// ConfirmURL 是驗證信中的連結，token 會加在 query string
	ConfirmURL string
}

func (c Config) withDefaults() Config {
	c.AccessTokenTTL = lo.Ternary(c.AccessTokenTTL > 0, c.AccessTokenTTL, time.Hour)
	c.RefreshTokenTTL = lo.Ternary(c.RefreshTokenTTL > 0, c.RefreshTokenTTL, 30*24*time.Hour)
	c.VerifyTokenTTL = lo.Ternary(c.VerifyTokenTTL > 0, c.VerifyTokenTTL, 24*time.Hour)
	c.Issuer = lo.Ternary(c.Issuer != "", c.Issuer, "campusmart")
	c.Audience = lo.Ternary(c.Audience != "", c.Audience, "campusmart")
	return c
}

// Service 是無狀態的帳號服務，HTTP API 與 Client 共用
type Service struct {
	db        *gorm.DB
	tokens    redisAdapter.ITokenStore
	mailer    Mailer
	config    Config
	validator *validator.Validate
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMailer(mailer Mailer) Option {
	return func(s *Service) {
		if mailer != nil {
			s.mailer = mailer
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(db *gorm.DB, tokens redisAdapter.ITokenStore, config Config, opts ...Option) (*Service, error) {
	const op = "auth.NewService"
	if db == nil || tokens == nil {
		return nil, fmt.Errorf("[%s] database and token store are required", op)
	}
	if len(config.PrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("[%s] invalid ed25519 private key", op)
	}
	s := &Service{
		db:        db,
		tokens:    tokens,
		config:    config.withDefaults(),
		validator: validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mailer == nil {
		s.mailer = NewLogMailer(s.logger)
	}
	return s, nil
}

// PublicKey 回傳驗證 access token 用的公鑰
func (s *Service) PublicKey() ed25519.PublicKey {
	return s.config.PrivateKey.Public().(ed25519.PublicKey)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) checkEmail(email string) error {
	if err := s.validator.Var(email, "required,email,max=255"); err != nil {
		return fmt.Errorf("%w: email format is invalid", ErrInvalidInput)
	}
	return nil
}

func (s *Service) checkSignUp(email, password, nickname string) error {
	if err := s.checkEmail(email); err != nil {
		return err
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	if n := utf8.RuneCountInString(nickname); n < MinNicknameLength || n > MaxNicknameLength {
		return fmt.Errorf("%w: nickname must be %d-%d characters", ErrInvalidInput, MinNicknameLength, MaxNicknameLength)
	}
	return nil
}

// SignUp 建立帳號與使用者資料；需要信箱驗證時回傳的 Session 為 nil
func (s *Service) SignUp(ctx context.Context, email, password, nickname string) (backend.SignUpResult, error) {
	const op = "auth.Service.SignUp"
	email = normalizeEmail(email)
	nickname = strings.TrimSpace(nickname)
	if err := s.checkSignUp(email, password, nickname); err != nil {
		return backend.SignUpResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return backend.SignUpResult{}, fmt.Errorf("[%s] Fail to hash password, err=%w", op, err)
	}
	now := s.now()
	account := models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Nickname:     nickname,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.config.AutoConfirm {
		account.EmailConfirmedAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return backend.ErrEmailTaken
		}
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
		return tx.Create(&models.UserProfile{
			ID:        account.ID,
			Nickname:  &nickname,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error
	})
	if errors.Is(err, backend.ErrEmailTaken) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return backend.SignUpResult{}, backend.ErrEmailTaken
	}
	if err != nil {
		return backend.SignUpResult{}, fmt.Errorf("[%s] Fail to create account, err=%w", op, err)
	}
	s.logger.Info("Account created", zap.String("userID", account.ID), zap.Bool("confirmed", s.config.AutoConfirm))

	user := userFromAccount(account)
	if !s.config.AutoConfirm {
		if err := s.sendVerification(ctx, account); err != nil {
			return backend.SignUpResult{}, err
		}
		return backend.SignUpResult{User: user}, nil
	}
	session, err := s.issueSession(ctx, account)
	if err != nil {
		return backend.SignUpResult{}, err
	}
	return backend.SignUpResult{User: user, Session: session}, nil
}

// SignIn 以 email/密碼登入
func (s *Service) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	const op = "auth.Service.SignIn"
	email = normalizeEmail(email)
	if err := s.checkEmail(email); err != nil {
		return nil, err
	}
	account, err := s.findAccount(ctx, "email = ?", email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backend.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to find account, err=%w", op, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, backend.ErrInvalidCredentials
	}
	if account.EmailConfirmedAt == nil {
		return nil, backend.ErrEmailNotConfirmed
	}
	return s.issueSession(ctx, account)
}

// Refresh 以 refresh token 換發新的 session，舊的 refresh token 立即失效
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*backend.Session, error) {
	const op = "auth.Service.Refresh"
	if refreshToken == "" {
		return nil, backend.ErrSessionExpired
	}
	userID, err := s.tokens.Consume(ctx, kindRefresh, refreshToken)
	if errors.Is(err, redisAdapter.ErrTokenNotFound) {
		return nil, backend.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to consume refresh token, err=%w", op, err)
	}
	account, err := s.findAccount(ctx, "id = ?", userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backend.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to find account, err=%w", op, err)
	}
	return s.issueSession(ctx, account)
}

// Verify 驗證 access token 並回傳使用者
func (s *Service) Verify(accessToken string) (backend.User, error) {
	claims, err := ParseAndValidateJWT(accessToken, s.PublicKey(), s.config.Issuer, s.config.Audience, s.now)
	if err != nil {
		return backend.User{}, fmt.Errorf("%w: %w", backend.ErrSessionExpired, err)
	}
	return backend.User{
		ID:             claims.Subject,
		Email:          claims.Email,
		Nickname:       claims.Nickname,
		EmailConfirmed: claims.EmailVerified,
	}, nil
}

// ResendSignupVerification 重新寄送驗證信；帳號不存在或已驗證時不做任何事
func (s *Service) ResendSignupVerification(ctx context.Context, email string) error {
	const op = "auth.Service.ResendSignupVerification"
	email = normalizeEmail(email)
	if err := s.checkEmail(email); err != nil {
		return err
	}
	account, err := s.findAccount(ctx, "email = ?", email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Debug("Resend for unknown email ignored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("[%s] Fail to find account, err=%w", op, err)
	}
	if account.EmailConfirmedAt != nil {
		return nil
	}
	return s.sendVerification(ctx, account)
}

// ConfirmEmail 使用驗證 token 完成信箱驗證並登入
func (s *Service) ConfirmEmail(ctx context.Context, token string) (*backend.Session, error) {
	const op = "auth.Service.ConfirmEmail"
	userID, err := s.tokens.Consume(ctx, kindVerify, token)
	if errors.Is(err, redisAdapter.ErrTokenNotFound) {
		return nil, backend.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to consume verification token, err=%w", op, err)
	}
	account, err := s.findAccount(ctx, "id = ?", userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, backend.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to find account, err=%w", op, err)
	}
	if account.EmailConfirmedAt == nil {
		now := s.now()
		if err := s.db.WithContext(ctx).Model(&account).Updates(map[string]any{
			"email_confirmed_at": now,
			"updated_at":         now,
		}).Error; err != nil {
			return nil, fmt.Errorf("[%s] Fail to confirm email, err=%w", op, err)
		}
		account.EmailConfirmedAt = &now
	}
	return s.issueSession(ctx, account)
}

// SignOut 撤銷 refresh token；access token 會自然過期
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	const op = "auth.Service.SignOut"
	if refreshToken == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, kindRefresh, refreshToken); err != nil {
		return fmt.Errorf("[%s] Fail to revoke refresh token, err=%w", op, err)
	}
	return nil
}

func (s *Service) findAccount(ctx context.Context, query string, arg string) (models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where(query, arg).First(&account).Error
	return account, err
}

func (s *Service) sendVerification(ctx context.Context, account models.Account) error {
	const op = "auth.Service.sendVerification"
	token, err := s.tokens.Issue(ctx, kindVerify, account.ID, s.config.VerifyTokenTTL)
	if err != nil {
		return fmt.Errorf("[%s] Fail to issue verification token, err=%w", op, err)
	}
	if err := s.mailer.SendVerification(ctx, account.Email, s.confirmLink(token)); err != nil {
		return fmt.Errorf("[%s] Fail to send verification mail, err=%w", op, err)
	}
	return nil
}

func (s *Service) confirmLink(token string) string {
	if s.config.ConfirmURL == "" {
		return token
	}
	u, err := url.Parse(s.config.ConfirmURL)
	if err != nil {
		return s.config.ConfirmURL + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Service) issueSession(ctx context.Context, account models.Account) (*backend.Session, error) {
	const op = "auth.Service.issueSession"
	now := s.now()
	accessToken, expiresAt, err := s.signAccessToken(Claims{
		Email:            account.Email,
		Nickname:         account.Nickname,
		EmailVerified:    account.EmailConfirmedAt != nil,
		RegisteredClaims: jwtSubject(account.ID),
	}, now)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.tokens.Issue(ctx, kindRefresh, account.ID, s.config.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to issue refresh token, err=%w", op, err)
	}
	return &backend.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         userFromAccount(account),
	}, nil
}

func userFromAccount(account models.Account) backend.User {
	return backend.User{
		ID:             account.ID,
		Email:          account.Email,
		Nickname:       account.Nickname,
		EmailConfirmed: account.EmailConfirmedAt != nil,
	}
}
