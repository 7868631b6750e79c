// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mmeshcher/starsky/internal/model"
)

const (
	maxStarNameLen  = 40
	maxMessageLen   = 280
	minLoginLen     = 3
	maxLoginLen     = 32
	minPasswordLen  = 6
	maxSessionIDLen = 255
)

var (
	// ErrEmptyStarName возвращается для пустого имени звезды.
	ErrEmptyStarName = errors.New("star name is empty")
	// ErrStarNameTooLong возвращается для слишком длинного имени звезды.
	ErrStarNameTooLong = errors.New("star name is too long")
	// ErrEmptyMessage возвращается для пустого послания.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrMessageTooLong возвращается для слишком длинного послания.
	ErrMessageTooLong = errors.New("message is too long")
	// ErrControlCharacters возвращается, если текст содержит управляющие символы.
	ErrControlCharacters = errors.New("text contains control characters")
	// ErrUnknownSky возвращается для неизвестного неба.
	ErrUnknownSky = errors.New("unknown sky partition")
	// ErrInvalidLogin возвращается для некорректного логина.
	ErrInvalidLogin = errors.New("invalid login")
	// ErrWeakPassword возвращается для слишком короткого пароля.
	ErrWeakPassword = errors.New("password is too short")
	// ErrInvalidSessionID возвращается для некорректного идентификатора платёжной сессии.
	ErrInvalidSessionID = errors.New("invalid payment session id")
)

// StarName обрезает пробелы и проверяет имя звезды.
func StarName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyStarName
	}
	if utf8.RuneCountInString(name) > maxStarNameLen {
		return "", ErrStarNameTooLong
	}
	if hasControl(name, false) {
		return "", ErrControlCharacters
	}
	return name, nil
}

// Message обрезает пробелы и проверяет текст послания. Переводы строк допустимы.
func Message(msg string) (string, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(msg) > maxMessageLen {
		return "", ErrMessageTooLong
	}
	if hasControl(msg, true) {
		return "", ErrControlCharacters
	}
	return msg, nil
}

// Sky разбирает название неба. Пустая строка означает общее небо.
func Sky(s string) (model.SkyPartition, error) {
	switch model.SkyPartition(s) {
	case "", model.SkyShared:
		return model.SkyShared, nil
	case model.SkyPersonal:
		return model.SkyPersonal, nil
	default:
		return "", ErrUnknownSky
	}
}

// Login проверяет логин: латиница, цифры, '_', '.', '-'.
func Login(login string) error {
	if len(login) < minLoginLen || len(login) > maxLoginLen {
		return ErrInvalidLogin
	}
	for _, r := range login {
		if !isLoginRune(r) {
			return ErrInvalidLogin
		}
	}
	return nil
}

// Password проверяет минимальную длину пароля.
func Password(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return ErrWeakPassword
	}
	return nil
}

// SessionID проверяет идентификатор платёжной сессии.
func SessionID(id string) error {
	if id == "" || len(id) > maxSessionIDLen {
		return ErrInvalidSessionID
	}
	for _, r := range id {
		if !isLoginRune(r) {
			return ErrInvalidSessionID
		}
	}
	return nil
}

func isLoginRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '_' || r == '.' || r == '-'
}

func hasControl(s string, allowNewlines bool) bool {
	for _, r := range s {
		if allowNewlines && (r == '\n' || r == '\r' || r == '\t') {
			continue
		}
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
