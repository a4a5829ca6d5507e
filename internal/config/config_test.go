package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DSN", "postgres://localhost/photocards")
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123")
	t.Setenv("ACCOUNT_ID", "acct")
	t.Setenv("ACCESS_KEY_ID", "key")
	t.Setenv("ACCESS_KEY_SECRET", "secret")
	t.Setenv("BUCKET_NAME", "images")
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "3000", cfg.App.Port)
		assert.Equal(t, 50*1024*1024, cfg.Image.MaxSizeBytes)
		assert.Equal(t, 200, cfg.Image.ThumbnailHeightPx)
		assert.Equal(t, "length", cfg.Image.DedupStrategy)
		assert.Equal(t, "s3", cfg.Blob.Backend)
		assert.False(t, cfg.IsProduction())
	})

	t.Run("rejects missing dsn", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DSN", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("minio backend needs an endpoint", func(t *testing.T) {
		setRequired(t)
		t.Setenv("BLOB_BACKEND", "minio")

		_, err := Load()
		assert.Error(t, err)

		t.Setenv("MINIO_ENDPOINT", "localhost:9000")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "localhost:9000", cfg.Blob.MinioEndpoint)
	})

	t.Run("rejects unknown dedup strategy", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DEDUP_STRATEGY", "pixels")

		_, err := Load()
		assert.Error(t, err)
	})
}
