package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "gcs", cfg.MediaProvider)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 60*time.Second, cfg.UploadTimeout)
	assert.True(t, cfg.CookieSecure)
	assert.Empty(t, cfg.ESAddrs())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("MEDIA_PROVIDER", "S3")
	t.Setenv("JWT_ACCESS_TTL", "15m")
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("ELASTICSEARCH_ADDRS", "http://es1:9200,http://es2:9200")

	cfg := Load()
	assert.Equal(t, "s3", cfg.MediaProvider)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, int32(25), cfg.DBMaxConns)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins())
	assert.Len(t, cfg.ESAddrs(), 2)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("JWT_REFRESH_TTL", "a week")
	t.Setenv("REDIS_DB", "one")
	t.Setenv("S3_USE_PATH_STYLE", "maybe")

	cfg := Load()
	assert.Equal(t, 168*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.False(t, cfg.S3UsePathStyle)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "5432", DBName: "d", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", cfg.PostgresDSN())
}

func TestLoad_RecordsProblems(t *testing.T) {
	t.Setenv("UPLOAD_TIMEOUT", "soon")
	var r envReader
	cfg := load(&r)
	assert.Equal(t, time.Minute, cfg.UploadTimeout)
	assert.Len(t, r.problems, 1)
	assert.Contains(t, r.problems[0], "UPLOAD_TIMEOUT")
}

func TestPostgresDSN_EscapesCredentials(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p@ss/w", DBHost: "h", DBPort: "5432", DBName: "d", DBSSLMode: "require"}
	assert.Equal(t, "postgres://u:p%40ss%2Fw@h:5432/d?sslmode=require", cfg.PostgresDSN())
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.GCSBucket = "media"
	assert.NoError(t, cfg.Validate())

	cfg.Env = "production"
	assert.ErrorContains(t, cfg.Validate(), "development JWT secrets")

	cfg = Load()
	cfg.MediaProvider = "ftp"
	cfg.JWTRefreshSecret = cfg.JWTAccessSecret
	err := cfg.Validate()
	assert.ErrorContains(t, err, "must differ")
	assert.ErrorContains(t, err, `unknown MEDIA_PROVIDER "ftp"`)
}
