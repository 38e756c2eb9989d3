package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"powerhause/internal/model"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	ErrInvalidBotToken = errors.New("telegram rejected the bot token")
	ErrChatUnreachable = errors.New("telegram chat not reachable by the bot")
	ErrTelegramFailed  = errors.New("telegram verification request failed")
)

// 返回给运营的提示文案
var verifyMessages = map[error]string{
	ErrInvalidBotToken: "Invalid Telegram bot token",
	ErrChatUnreachable: "Bot is not an admin in the specified chat or chat ID is invalid",
	ErrTelegramFailed:  "Failed to validate Telegram bot token",
}

// verifyDetail 把校验错误转换为展示文案
func verifyDetail(err error) string {
	for target, msg := range verifyMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return err.Error()
}

type telegramResp struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// TelegramVerifier 通过 Bot API 检查 token 与 chat ID
type TelegramVerifier struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

var _ CredentialVerifier = (*TelegramVerifier)(nil)

func NewTelegramVerifier(baseURL string, logger *zap.Logger) *TelegramVerifier {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10 * time.Second)
	return &TelegramVerifier{httpClient: client, logger: logger}
}

func (v *TelegramVerifier) Verify(ctx context.Context, cred model.Credential) error {
	token := strings.TrimSpace(cred.Token)

	ok, err := v.call(ctx, token, "getMe", nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidBotToken
	}

	ok, err = v.call(ctx, token, "getChat", map[string]string{"chat_id": strings.TrimSpace(cred.ChatID)})
	if err != nil {
		return err
	}
	if !ok {
		return ErrChatUnreachable
	}
	return nil
}

func (v *TelegramVerifier) call(ctx context.Context, token, method string, query map[string]string) (bool, error) {
	var body telegramResp
	resp, err := v.httpClient.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"token": token, "method": method}).
		SetQueryParams(query).
		SetResult(&body).
		SetError(&body).
		Get("/bot{token}/{method}")
	if err != nil {
		v.logger.Warn("telegram request failed", zap.String("method", method), zap.Error(err))
		return false, ErrTelegramFailed
	}
	if resp.StatusCode() >= 500 {
		return false, ErrTelegramFailed
	}
	return resp.IsSuccess() && body.OK, nil
}
