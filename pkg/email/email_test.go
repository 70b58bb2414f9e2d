package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingcore/pkg/email"
)

func postmarkConfig() email.Config {
	return email.Config{
		ServerToken:  "server",
		AccountToken: "account",
		From:         "billing@example.com",
		ReplyTo:      "support@example.com",
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	dev, err := email.New(email.Config{DevDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, dev)

	pm, err := email.New(postmarkConfig())
	require.NoError(t, err)
	assert.IsType(t, &email.Postmark{}, pm)
}

func TestNewPostmarkRejectsBadConfig(t *testing.T) {
	t.Parallel()

	tests := map[string]func(*email.Config){
		"one token":    func(c *email.Config) { c.AccountToken = "" },
		"bad from":     func(c *email.Config) { c.From = "nope" },
		"bad reply-to": func(c *email.Config) { c.ReplyTo = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := postmarkConfig()
			mutate(&cfg)
			_, err := email.NewPostmark(cfg)
			assert.ErrorIs(t, err, email.ErrConfig)
		})
	}
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	t.Run("writes body and envelope", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		err := email.NewDevSender(dir).Send(context.Background(), email.Message{
			To:      "u1@example.com",
			Subject: "Payment failed",
			HTML:    "<p>Your payment failed</p>",
			Tag:     "payment_failed",
		})
		require.NoError(t, err)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		files := map[string]string{}
		for _, e := range entries {
			files[filepath.Ext(e.Name())] = e.Name()
		}
		require.Contains(t, files, ".html")
		require.Contains(t, files, ".json")
		assert.True(t, strings.HasSuffix(files[".html"], "_payment_failed.html"))

		body, err := os.ReadFile(filepath.Join(dir, files[".html"]))
		require.NoError(t, err)
		assert.Equal(t, "<p>Your payment failed</p>", string(body))

		raw, err := os.ReadFile(filepath.Join(dir, files[".json"]))
		require.NoError(t, err)
		var env map[string]any
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, "u1@example.com", env["to"])
		assert.Equal(t, "Payment failed", env["subject"])
		assert.NotContains(t, env, "HTML")
		assert.Contains(t, env, "sent_at")
	})

	invalid := map[string]email.Message{
		"no recipient":  {Subject: "s", HTML: "b"},
		"bad recipient": {To: "not-an-email", Subject: "s", HTML: "b"},
		"no subject":    {To: "u1@example.com", HTML: "b"},
		"no body":       {To: "u1@example.com", Subject: "s"},
	}
	for name, msg := range invalid {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			err := email.NewDevSender(dir).Send(context.Background(), msg)
			assert.ErrorIs(t, err, email.ErrMessage)
			entries, _ := os.ReadDir(dir)
			assert.Empty(t, entries)
		})
	}
}
