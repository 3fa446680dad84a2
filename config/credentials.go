package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"
)

const baseCredPath = "subfeed/creds.toml"

// Credentials holds secrets kept out of config.toml
type Credentials struct {
	Redis RedisCredentials `toml:"redis"`
}

// RedisCredentials override the user info of cache.redis_url
type RedisCredentials struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// IsSet reports whether any redis credential was provided
func (rc RedisCredentials) IsSet() bool {
	return rc.Username != "" || rc.Password != ""
}

// ReadCredentials reads credentials from the specified path
func ReadCredentials(path string) (Credentials, error) {
	var creds Credentials

	data, err := os.ReadFile(path)
	if err != nil {
		return creds, err
	}

	if _, err := toml.Decode(string(data), &creds); err != nil {
		return creds, fmt.Errorf("failed to decode credentials at %s: %w", path, err)
	}

	return creds, nil
}

// WriteCredentials writes credentials to the specified path
func WriteCredentials(path string, creds Credentials) error {
	blob, err := toml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	basePath := filepath.Dir(path)
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return fmt.Errorf("failed to create credentials directory at '%s': %w", basePath, err)
	}

	// Only the owner can read or write
	if err := os.WriteFile(path, blob, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file at '%s': %w", path, err)
	}

	return nil
}

// DefaultCredentialsPath returns the default path for credentials file
func DefaultCredentialsPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return filepath.Join(xdgHome, baseCredPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return filepath.Join(home, ".config", baseCredPath)
	}

	panic("unable to determine credentials file path")
}

// PromptRedisCredentials asks for a username and password on in. The
// password is not echoed when in is a terminal.
func PromptRedisCredentials(in *os.File, out io.Writer) (RedisCredentials, error) {
	var creds RedisCredentials
	reader := bufio.NewReader(in)

	fmt.Fprint(out, "Enter redis username (empty for default): ")
	username, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return creds, fmt.Errorf("failed to read username: %w", err)
	}
	creds.Username = strings.TrimSpace(username)

	fmt.Fprint(out, "Enter redis password: ")
	var password string
	if fd := int(in.Fd()); term.IsTerminal(fd) {
		bytePwd, err := term.ReadPassword(fd)
		if err != nil {
			return creds, fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(out)
		password = string(bytePwd)
	} else {
		password, err = reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return creds, fmt.Errorf("failed to read password: %w", err)
		}
	}
	creds.Password = strings.TrimSpace(password)

	if !creds.IsSet() {
		return creds, fmt.Errorf("no credentials entered")
	}
	return creds, nil
}
