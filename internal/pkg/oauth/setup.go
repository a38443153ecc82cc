package oauth

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/facebook"
	"github.com/markbates/goth/providers/google"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
	appsession "github.com/hangarlinks/hangarlinks/internal/pkg/session"
)

type providerConfig struct {
	name   string
	key    string
	secret string
	build  func(key, secret, callback string) goth.Provider
}

func providerConfigs() []providerConfig {
	return []providerConfig{
		{"google", env.GetEnv("GOOGLE_KEY", ""), env.GetEnv("GOOGLE_SECRET", ""), func(k, s, cb string) goth.Provider {
			return google.New(k, s, cb, "email", "profile")
		}},
		{"facebook", env.GetEnv("FACEBOOK_KEY", ""), env.GetEnv("FACEBOOK_SECRET", ""), func(k, s, cb string) goth.Provider {
			return facebook.New(k, s, cb, "email", "public_profile")
		}},
		{"discord", env.GetEnv("DISCORD_KEY", ""), env.GetEnv("DISCORD_SECRET", ""), func(k, s, cb string) goth.Provider {
			return discord.New(k, s, cb, discord.ScopeIdentify, discord.ScopeEmail)
		}},
	}
}

// Configured returns the providers that have client credentials, in display order.
func Configured() []string {
	var names []string
	for _, p := range providerConfigs() {
		if p.key != "" && p.secret != "" {
			names = append(names, p.name)
		}
	}
	return names
}

// Setup registers the configured Goth providers and the OAuth state store.
// Calling it again re-registers the providers.
func Setup() {
	base := env.PublicURL()

	var providers []goth.Provider
	for _, p := range providerConfigs() {
		if p.key == "" || p.secret == "" {
			continue
		}
		providers = append(providers, p.build(p.key, p.secret, base+"/auth/"+p.name+"/callback"))
	}
	goth.ClearProviders()
	goth.UseProviders(providers...)
	log.Infof("[OAuth] %d provider(s) enabled", len(providers))

	gothfiber.SessionStore = session.New(session.Config{
		Storage:        appsession.RedisStorage(appsession.OAuthStateDB),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     72 * time.Hour,
	})
}
