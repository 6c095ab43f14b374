package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_AllFields(t *testing.T) {
	path := writeConfig(t, `
[plex]
url = "http://plex:32400"
token = "secret"
user = "kid"
sections = ["Anime", "Anime Movies"]
genres = ["Anime"]

[log]
level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://plex:32400", cfg.Plex.URL)
	assert.Equal(t, "secret", cfg.Plex.Token)
	assert.Equal(t, "kid", cfg.Plex.User)
	assert.Equal(t, []string{"Anime", "Anime Movies"}, cfg.Plex.Sections)
	assert.Equal(t, []string{"Anime"}, cfg.Plex.Genres)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_DefaultLogLevel(t *testing.T) {
	path := writeConfig(t, `
[plex]
url = "http://plex:32400"
token = "secret"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("PLEX_TOKEN_TEST", "from-env")

	path := writeConfig(t, `
[plex]
url = "http://plex:32400"
token = "${PLEX_TOKEN_TEST}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Plex.Token)
}

func TestLoad_EnvDefault(t *testing.T) {
	path := writeConfig(t, `
[plex]
url = "${PLEX_URL_UNSET_TEST:-http://plex:32400}"
token = "secret"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://plex:32400", cfg.Plex.URL)
}

func TestLoad_EmptyEnvUsesDefault(t *testing.T) {
	t.Setenv("PLEX_URL_EMPTY_TEST", "")

	path := writeConfig(t, `
[plex]
url = "${PLEX_URL_EMPTY_TEST:-http://plex:32400}"
token = "secret"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://plex:32400", cfg.Plex.URL)
}

func TestLoad_MissingEnvVar(t *testing.T) {
	path := writeConfig(t, `
[plex]
url = "http://plex:32400"
token = "${PLEX_TOKEN_DEFINITELY_UNSET}"
`)

	_, err := Load(path)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"PLEX_TOKEN_DEFINITELY_UNSET"}, cfgErr.Missing)
	assert.True(t, cfgErr.HasErrors())
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "valid",
			cfg: Config{
				Plex: PlexConfig{URL: "http://plex:32400", Token: "t"},
				Log:  LogConfig{Level: "info"},
			},
		},
		{
			name: "missing url and token",
			cfg:  Config{},
			want: []string{"plex.url: required", "plex.token: required"},
		},
		{
			name: "bad url",
			cfg:  Config{Plex: PlexConfig{URL: "not a url", Token: "t"}},
			want: []string{`plex.url: not a valid URL: "not a url"`},
		},
		{
			name: "bad log level",
			cfg: Config{
				Plex: PlexConfig{URL: "http://plex:32400", Token: "t"},
				Log:  LogConfig{Level: "verbose"},
			},
			want: []string{`log.level: must be one of debug, info, warn, error; got "verbose"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Validate())
		})
	}
}
