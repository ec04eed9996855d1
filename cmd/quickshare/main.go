// Точка входа QuickShare — сервиса передачи файлов по шестизначному коду.
// Подкоманды: serve (по умолчанию), sweep, migrate.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
