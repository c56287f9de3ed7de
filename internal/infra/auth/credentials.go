package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/infra"
)

// Credentials: client credentials и адрес API, к которому они выданы.
type Credentials struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// ReadCredentialsFile читает файл из трех строк: client id, secret, base url.
func ReadCredentialsFile(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("open credentials file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() && len(lines) < 3 {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return Credentials{}, fmt.Errorf("read credentials file: %w", err)
	}
	for len(lines) < 3 {
		lines = append(lines, "")
	}

	return Credentials{ClientID: lines[0], ClientSecret: lines[1], BaseURL: lines[2]}, nil
}

// ResolveCredentials берет значения из конфига, а недостающие дочитывает из файла.
// Без id, secret или base url возвращает domain.ErrNoCredentials.
func ResolveCredentials(api infra.APIConfig, cfg infra.AuthConfig) (Credentials, error) {
	c := Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		BaseURL:      api.BaseURL,
	}

	if (c.ClientID == "" || c.ClientSecret == "" || c.BaseURL == "") && cfg.CredentialsFile != "" {
		fromFile, err := ReadCredentialsFile(cfg.CredentialsFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, err
		}
		if c.ClientID == "" {
			c.ClientID = fromFile.ClientID
		}
		if c.ClientSecret == "" {
			c.ClientSecret = fromFile.ClientSecret
		}
		if c.BaseURL == "" {
			c.BaseURL = fromFile.BaseURL
		}
	}

	switch {
	case c.ClientID == "":
		return Credentials{}, fmt.Errorf("%w: client id", domain.ErrNoCredentials)
	case c.ClientSecret == "":
		return Credentials{}, fmt.Errorf("%w: client secret", domain.ErrNoCredentials)
	case c.BaseURL == "":
		return Credentials{}, fmt.Errorf("%w: base url", domain.ErrNoCredentials)
	}

	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c, nil
}
