package server_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crivus/quizlead/internal/server"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() server.Config {
		var c server.Config
		c.HTTP.Port = 8080
		c.Auth.Secret = "secret"
		c.Redis.Notify.Addrs = []string{"localhost:6379"}
		c.Postgres.Tracking.Addr = "localhost:5432"
		c.Postgres.Tracking.User = "quizlead"
		c.Postgres.Tracking.Name = "quizlead"
		return c
	}

	require.NoError(t, valid().Validate())

	tests := map[string]func(c *server.Config){
		"missing port":          func(c *server.Config) { c.HTTP.Port = 0 },
		"missing auth secret":   func(c *server.Config) { c.Auth.Secret = "" },
		"missing redis addrs":   func(c *server.Config) { c.Redis.Notify.Addrs = nil },
		"missing postgres addr": func(c *server.Config) { c.Postgres.Tracking.Addr = "" },
		"missing postgres name": func(c *server.Config) { c.Postgres.Tracking.Name = "" },
	}

	for name, mutate := range tests {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
