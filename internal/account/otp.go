package account

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/safar/agrimarket/internal/models"
	"github.com/safar/agrimarket/internal/notify"
)

const codeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random zero-padded six digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func codeMatches(stored *string, code string) bool {
	if stored == nil || len(code) != codeDigits {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(code)) == 1
}

func codeExpired(issuedAt *time.Time, now time.Time, ttl time.Duration) bool {
	return issuedAt == nil || now.After(issuedAt.Add(ttl))
}

// checkCode validates a submitted code against the user's pending one.
func checkCode(user *models.User, code string, now time.Time, ttl time.Duration) error {
	if !codeMatches(user.OTPCode, code) {
		return ErrInvalidCode
	}
	if codeExpired(user.OTPGeneratedAt, now, ttl) {
		return ErrExpiredCode
	}
	return nil
}

// identifierChannel decides how a reset identifier is resolved and where the
// code goes: anything containing "@" is an email, the rest a phone number.
func identifierChannel(identifier string) notify.Channel {
	if strings.Contains(identifier, "@") {
		return notify.ChannelEmail
	}
	return notify.ChannelSMS
}
