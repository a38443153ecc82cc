package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfiguredRequiresKeyAndSecret(t *testing.T) {
	t.Setenv("GOOGLE_KEY", "gk")
	t.Setenv("GOOGLE_SECRET", "gs")
	t.Setenv("FACEBOOK_KEY", "fk")
	t.Setenv("FACEBOOK_SECRET", "")
	t.Setenv("DISCORD_KEY", "")
	t.Setenv("DISCORD_SECRET", "")

	assert.Equal(t, []string{"google"}, Configured())
}
