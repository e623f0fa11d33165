package auth

import (
	"context"

	"go.uber.org/zap"
)

// Mailer 寄送註冊驗證信
type Mailer interface {
	SendVerification(ctx context.Context, email, link string) error
}

// LogMailer 不寄信，只把驗證連結寫進 log，開發環境使用
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerification(_ context.Context, email, link string) error {
	m.logger.Info("Verification mail", zap.String("email", email), zap.String("link", link))
	return nil
}
