package whatsapp

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/localstore"
)

// minPhoneDigits is the shortest accepted international number.
const minPhoneDigits = 10

// ErrInvalidPhone is returned for numbers with too few digits.
var ErrInvalidPhone = errors.New("whatsapp number must have at least 10 digits")

// CleanPhone strips everything but digits. Arabic-Indic digits are
// converted to ASCII.
func CleanPhone(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		if r >= '٠' && r <= '٩' {
			return '0' + (r - '٠')
		}
		if r >= '۰' && r <= '۹' {
			return '0' + (r - '۰')
		}
		return -1
	}, s)
}

// PhoneBook resolves the number orders are sent to: the admin-configured
// value when one is stored, otherwise the configured default.
type PhoneBook struct {
	kv       localstore.KV
	fallback string
	logger   *zap.Logger
}

func NewPhoneBook(kv localstore.KV, fallback string, logger *zap.Logger) *PhoneBook {
	return &PhoneBook{kv: kv, fallback: CleanPhone(fallback), logger: logger}
}

// Phone never fails; storage errors fall back to the default.
func (p *PhoneBook) Phone() string {
	v, ok, err := p.kv.Get(localstore.KeyWhatsAppNumber)
	if err != nil {
		p.logger.Warn("read whatsapp number", zap.Error(err))
		return p.fallback
	}
	if !ok || v == "" {
		return p.fallback
	}
	return v
}

// SetPhone stores a cleaned number and returns it.
func (p *PhoneBook) SetPhone(raw string) (string, error) {
	phone := CleanPhone(raw)
	if len(phone) < minPhoneDigits {
		return "", ErrInvalidPhone
	}
	if err := p.kv.Set(localstore.KeyWhatsAppNumber, phone); err != nil {
		return "", err
	}
	return phone, nil
}
