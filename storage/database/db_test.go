package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name        string
		db          core.DatabaseConfig
		wantHost    string
		wantSSLMode string
	}{
		{
			name:        "tls",
			db:          core.DatabaseConfig{Engine: "postgres", Host: "db.project.supabase.co", Port: "5432", Name: "postgres", User: "postgres", Password: "s3cr3t/?"},
			wantHost:    "db.project.supabase.co:5432",
			wantSSLMode: "require",
		},
		{
			name:        "local",
			db:          core.DatabaseConfig{Engine: "postgres", Host: "localhost", Name: "academia", User: "dev", DisableTLS: true},
			wantHost:    "localhost",
			wantSSLMode: "disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(DSN(&core.Config{Database: tt.db}))
			require.NoError(t, err)

			assert.Equal(t, "postgres", u.Scheme)
			assert.Equal(t, tt.wantHost, u.Host)
			assert.Equal(t, "/"+tt.db.Name, u.Path)
			assert.Equal(t, tt.db.User, u.User.Username())
			pwd, _ := u.User.Password()
			assert.Equal(t, tt.db.Password, pwd)
			assert.Equal(t, tt.wantSSLMode, u.Query().Get("sslmode"))
			assert.Equal(t, "utc", u.Query().Get("timezone"))
		})
	}
}
