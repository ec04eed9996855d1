package service

import (
	"regexp"
	"testing"
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

func TestRandomCodeGenerator(t *testing.T) {
	gen := RandomCodeGenerator{}
	seen := make(map[string]bool)

	for i := 0; i < 2000; i++ {
		code, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !codePattern.MatchString(code) {
			t.Fatalf("код %q не соответствует формату 6 цифр", code)
		}
		if code[0] == '0' {
			t.Fatalf("код %q вне диапазона 100000-999999", code)
		}
		seen[code] = true
	}

	// 2000 выборок из 900000 значений: повторы возможны, но единичные
	if len(seen) < 1900 {
		t.Errorf("слишком много повторов: уникальных %d из 2000", len(seen))
	}
}

func TestCodeGeneratorFunc(t *testing.T) {
	var gen CodeGenerator = CodeGeneratorFunc(func() (string, error) { return "123456", nil })
	code, err := gen.Generate()
	if err != nil || code != "123456" {
		t.Errorf("ожидалось 123456, получено %q (%v)", code, err)
	}
}
