package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// AppDataDir returns the per-user data directory of the application
func AppDataDir() (string, error) {
	base, err := dataHome(runtime.GOOS, os.Getenv, os.UserHomeDir, os.Executable)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

func dataHome(goos string, getenv func(string) string, home func() (string, error), executable func() (string, error)) (string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		if xdg := getenv("XDG_DATA_HOME"); xdg != "" {
			return xdg, nil
		}
		h, err := home()
		if err != nil {
			return "", err
		}
		return filepath.Join(h, ".local", "share"), nil
	case "windows":
		if local := getenv("LOCALAPPDATA"); local != "" {
			return local, nil
		}
		return "", errors.New("LOCALAPPDATA is not set")
	case "darwin":
		h, err := home()
		if err != nil {
			return "", err
		}
		return filepath.Join(h, "Library", "Application Support"), nil
	default:
		exe, err := executable()
		if err != nil {
			return "", err
		}
		return filepath.Dir(exe), nil
	}
}
