package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnvFile reads path as a .env file and sets each KEY=value it contains.
// Values already present in the process environment win. A missing file is not
// an error. Path is cleaned with filepath.Clean since it may come from a flag.
func LoadEnvFile(path string) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
