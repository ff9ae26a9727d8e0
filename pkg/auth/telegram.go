package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mentalgoals/pkg/logger"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"go.uber.org/zap"
)

const (
	expTime = 24 * time.Hour
	scheme  = "Telegram "

	// TelegramUserKey holds the *TelegramUserData of an authenticated request.
	TelegramUserKey = "telegram_user"
)

var (
	ErrMissingHeader = errors.New("authorization header is required")
	ErrInvalidScheme = errors.New("invalid authorization format")
	ErrNoUser        = errors.New("init data carries no user")
)

type TelegramAuth struct {
	botToken  string
	debugMode bool
}

// NewTelegramAuth checks init data signed with botToken. In debug mode the
// signature is not verified.
func NewTelegramAuth(botToken string, debugMode bool) *TelegramAuth {
	return &TelegramAuth{
		botToken:  botToken,
		debugMode: debugMode,
	}
}

type TelegramUserData struct {
	ID       int64
	Username string
	AuthDate time.Time
}

func (t *TelegramAuth) TelegramAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := t.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			logger.Logger().Info("telegram auth rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(TelegramUserKey, user)
		c.Next()
	}
}

// Authenticate validates an "Authorization: Telegram <init data>" header and
// returns the user it was issued for.
func (t *TelegramAuth) Authenticate(header string) (*TelegramUserData, error) {
	if header == "" {
		return nil, ErrMissingHeader
	}
	if !strings.HasPrefix(header, scheme) {
		return nil, ErrInvalidScheme
	}

	raw := strings.TrimPrefix(header, scheme)
	if !t.debugMode {
		if err := initdata.Validate(raw, t.botToken, expTime); err != nil {
			return nil, err
		}
	}

	data, err := initdata.Parse(raw)
	if err != nil {
		return nil, err
	}
	if data.User.ID == 0 {
		return nil, ErrNoUser
	}

	return &TelegramUserData{
		ID:       data.User.ID,
		Username: data.User.Username,
		AuthDate: data.AuthDate(),
	}, nil
}

// Owner returns the telegram id of the authenticated user. Challenge data is
// stored per owner.
func Owner(c *gin.Context) (string, bool) {
	userData, exists := c.Get(TelegramUserKey)
	if !exists {
		return "", false
	}
	user, ok := userData.(*TelegramUserData)
	if !ok || user == nil {
		return "", false
	}
	return strconv.FormatInt(user.ID, 10), true
}
