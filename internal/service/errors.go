// errors.go — ошибки бизнес-логики сервиса передач.
package service

import (
	"errors"
)

// Категории ошибок сервиса. Проверяются через errors.Is.
var (
	// ErrValidation — некорректные или отсутствующие входные данные.
	ErrValidation = errors.New("ошибка валидации")
	// ErrFileTooLarge — файл превышает допустимый размер (частный случай ErrValidation).
	ErrFileTooLarge = errors.New("файл слишком большой")
	// ErrNotFound — передача с таким кодом не найдена.
	ErrNotFound = errors.New("передача не найдена")
	// ErrForbidden — секретное слово не совпадает.
	ErrForbidden = errors.New("секретное слово не совпадает")
	// ErrGone — срок действия передачи истёк.
	ErrGone = errors.New("срок действия передачи истёк")
	// ErrStorage — сбой хранилища blob-ов или записей.
	ErrStorage = errors.New("ошибка хранилища")
)

// Сообщения для клиента. Внутренние подробности сбоев хранилища
// клиенту не передаются.
const (
	MsgUploadRequired   = "File and secret word are required."
	MsgDownloadRequired = "Code and secret word are required."
	MsgInvalidCode      = "Invalid code."
	MsgSecretMismatch   = "Secret word mismatch."
	MsgCodeExpired      = "Code expired."
	MsgUploadFailed     = "Upload failed"
	MsgDownloadFailed   = "Download failed"
	MsgCleanupFailed    = "Cleanup failed."
)

// TransferError — ошибка операции с передачей.
// Kind — одна из категорий выше, Message — текст для клиента,
// Err — исходная причина (только для логов).
type TransferError struct {
	Kind    error
	Message string
	Err     error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

// Is сопоставляет ошибку с категорией. ErrFileTooLarge также является ErrValidation.
func (e *TransferError) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	return e.Kind == ErrFileTooLarge && target == ErrValidation
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func newError(kind error, message string, cause error) *TransferError {
	return &TransferError{Kind: kind, Message: message, Err: cause}
}

// PublicMessage возвращает текст ошибки для клиента.
func PublicMessage(err error) string {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Message
	}
	return "Internal error"
}
