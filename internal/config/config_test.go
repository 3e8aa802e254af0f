package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
jwt:
  signing_key: secret
  issuer: vipcenter
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.State.Backend)
	assert.Equal(t, "noop", cfg.Events.Backend)
	assert.Equal(t, 3, cfg.Membership.FreeQuota)
	assert.Equal(t, 10, cfg.Membership.MonthlyQuota)
	assert.Equal(t, 30*24*time.Hour, cfg.Membership.MonthlyDuration)
	assert.Equal(t, 365*24*time.Hour, cfg.Membership.CodeValidity)
	assert.Equal(t, 100, cfg.Membership.MaxCodesPerBatch)
	assert.Equal(t, uint32(5), cfg.Events.Breaker.FailureThreshold)
}

func TestLoad_ParsesDurationsAndLists(t *testing.T) {
	path := writeConfig(t, `
admin:
  user_ids:
    - 11111111-1111-1111-1111-111111111111
membership:
  monthly_duration: 1440h
  quota_period: 720h
sweeper:
  enabled: true
  interval: 15m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"11111111-1111-1111-1111-111111111111"}, cfg.Admin.UserIDs)
	assert.Equal(t, 60*24*time.Hour, cfg.Membership.MonthlyDuration)
	assert.Equal(t, 30*24*time.Hour, cfg.Membership.QuotaPeriod)
	assert.True(t, cfg.Sweeper.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.Interval)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
membership:
  monthly_quota: 10
`)
	t.Setenv("MEMBERSHIP_MONTHLY_QUOTA", "25")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Membership.MonthlyQuota)
}

func TestLoad_RejectsInvalidBackends(t *testing.T) {
	cases := map[string]string{
		"state":   "state:\n  backend: etcd\n",
		"events":  "events:\n  backend: kafka\n",
		"rabbit":  "events:\n  backend: rabbitmq\n",
		"period":  "membership:\n  monthly_duration: 24h\n  quota_period: 48h\n",
		"sweeper": "sweeper:\n  enabled: true\n  interval: -1m\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DB: "vip", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=vip sslmode=disable", p.DSN())
}
