package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buzz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
idle_interval: 2m
icons:
  new_mail: /usr/share/icons/new-mail.png
accounts:
  - name: work
    server: imap.example.com
    username: me@example.com
    password_cmd: pass show work
    notify_cmd: play ding.wav
  - name: home
    server: mail.home.net
    port: 1993
    username: me
    password: hunter2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, "/usr/share/icons/new-mail.png", cfg.Icons.NewMail)

	require.Len(t, cfg.Accounts, 2)
	work := cfg.Accounts[0]
	assert.Equal(t, "work", work.Name)
	assert.Equal(t, "imap.example.com:993", work.Addr(), "port defaults to 993")
	assert.Equal(t, "pass show work", work.PasswordCmd)
	assert.Equal(t, "play ding.wav", work.NotifyCmd)

	home := cfg.Accounts[1]
	assert.Equal(t, "mail.home.net:1993", home.Addr())
	assert.Equal(t, "hunter2", home.Password)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
accounts:
  - name: work
    server: imap.example.com
    username: me
    password: x
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout())
}

func TestValidate(t *testing.T) {
	account := func(mutate func(*AccountConfig)) AccountConfig {
		acc := AccountConfig{
			Name:        "work",
			Server:      "imap.example.com",
			Port:        993,
			Username:    "me",
			PasswordCmd: "pass show work",
		}
		mutate(&acc)
		return acc
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "no accounts",
			cfg:     Config{},
			wantErr: "at least one account",
		},
		{
			name: "missing name",
			cfg: Config{Accounts: []AccountConfig{
				account(func(a *AccountConfig) { a.Name = "" }),
			}},
			wantErr: "name is required",
		},
		{
			name: "duplicate names",
			cfg: Config{Accounts: []AccountConfig{
				account(func(a *AccountConfig) {}),
				account(func(a *AccountConfig) { a.Username = "other" }),
			}},
			wantErr: "duplicate name",
		},
		{
			name: "missing server",
			cfg: Config{Accounts: []AccountConfig{
				account(func(a *AccountConfig) { a.Server = "" }),
			}},
			wantErr: "server is required",
		},
		{
			name: "bad port",
			cfg: Config{Accounts: []AccountConfig{
				account(func(a *AccountConfig) { a.Port = 70000 }),
			}},
			wantErr: "invalid port",
		},
		{
			name: "missing username",
			cfg: Config{Accounts: []AccountConfig{
				account(func(a *AccountConfig) { a.Username = "" }),
			}},
			wantErr: "username is required",
		},
		{
			name: "both password and password_cmd",
			cfg: Config{Accounts: []AccountConfig{
				account(func(a *AccountConfig) { a.Password = "x" }),
			}},
			wantErr: "only one of password or password_cmd",
		},
		{
			name: "neither password nor password_cmd",
			cfg: Config{Accounts: []AccountConfig{
				account(func(a *AccountConfig) { a.PasswordCmd = "" }),
			}},
			wantErr: "either password or password_cmd",
		},
		{
			name: "bad idle interval",
			cfg: Config{
				IdleInterval: "soon",
				Accounts:     []AccountConfig{account(func(a *AccountConfig) {})},
			},
			wantErr: "invalid idle_interval",
		},
		{
			name: "valid",
			cfg: Config{Accounts: []AccountConfig{
				account(func(a *AccountConfig) {}),
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetAccountByName(t *testing.T) {
	cfg := Config{Accounts: []AccountConfig{
		{Name: "work"},
		{Name: "home"},
	}}

	acc, err := cfg.GetAccountByName("home")
	require.NoError(t, err)
	assert.Equal(t, "home", acc.Name)

	_, err = cfg.GetAccountByName("missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"work", "home"}, cfg.AccountNames())
}
