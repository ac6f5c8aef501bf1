package service

import (
	"context"

	"exam_practice_backend/pkg/logger"

	"go.uber.org/zap"
)

type Mailer interface {
	SendMagicLink(ctx context.Context, email, link string) error
}

// LogMailer 只把登录链接写进日志，开发环境使用
type LogMailer struct{}

func (LogMailer) SendMagicLink(_ context.Context, email, link string) error {
	logger.Log.Info("Magic link issued",
		zap.String("email", email),
		zap.String("link", link),
	)
	return nil
}
