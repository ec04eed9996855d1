package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Диапазон кодов передачи: 6 десятичных цифр без ведущего нуля.
const (
	codeMin   = 100000
	codeRange = 900000
)

// CodeGenerator выдаёт кандидатов в коды передачи.
// Уникальность проверяет хранилище записей при вставке.
type CodeGenerator interface {
	Generate() (string, error)
}

// CodeGeneratorFunc — адаптер функции к CodeGenerator.
type CodeGeneratorFunc func() (string, error)

// Generate вызывает f().
func (f CodeGeneratorFunc) Generate() (string, error) {
	return f()
}

// RandomCodeGenerator — равномерный выбор из [100000, 999999] через crypto/rand.
type RandomCodeGenerator struct{}

// Generate возвращает случайный 6-значный код.
func (RandomCodeGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", fmt.Errorf("ошибка генерации кода: %w", err)
	}
	return fmt.Sprintf("%06d", codeMin+n.Int64()), nil
}
