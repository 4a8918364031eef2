// Package auth logs in against the target API and installs the resulting
// bearer token as a default header for every later request of the run.
package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/abel-apply/apicheck/internal/config"
	"github.com/abel-apply/apicheck/internal/harness"
	"github.com/abel-apply/apicheck/internal/request"
)

// Bootstrapper performs the login for tagged scenarios. Ensure runs the login
// at most once per Bootstrapper, so one Bootstrapper is built per run.
type Bootstrapper struct {
	login   config.Login
	baseURL string

	once sync.Once
}

// NewBootstrapper creates a Bootstrapper logging in at baseURL with the given
// login settings. An empty baseURL keeps whatever base URL the run has.
func NewBootstrapper(login config.Login, baseURL string) *Bootstrapper {
	return &Bootstrapper{login: login, baseURL: baseURL}
}

// Ensure logs in with the configured credentials on its first call and is a
// no-op on every later call, whether the first one succeeded or not. Only the
// first call can return an error.
func (b *Bootstrapper) Ensure(ctx context.Context, hc *harness.Context) error {
	var err error
	b.once.Do(func() {
		log := hc.Logger()
		log.Info().
			Str("endpoint", b.login.Endpoint).
			Str("username", b.login.Username).
			Msg("running login bootstrap")

		var token string
		token, err = b.Login(ctx, hc, b.login.Username, b.login.Password)
		switch {
		case err != nil:
			log.Error().Err(err).Msg("login bootstrap failed")
		case token == "":
			log.Warn().Str("token_field", b.login.TokenField).Msg("login response carried no token; continuing unauthenticated")
		}
	})
	return err
}

// Login sends the credentials to the login endpoint. When the response body
// holds a non-empty string token field, the token is stashed and installed as
// the default Authorization header, and returned. A response without a token
// is not an error; the response stays available as the scenario's last
// response.
func (b *Bootstrapper) Login(ctx context.Context, hc *harness.Context, username, password string) (string, error) {
	hc.ResetSpec()
	if b.baseURL != "" {
		hc.SetBaseURL(b.baseURL)
	}

	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("encoding login body: %w", err)
	}

	resp, err := request.Send(ctx, hc, request.Description{
		Method:   "POST",
		Endpoint: b.login.Endpoint,
		Body:     string(body),
	})
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}

	obj, ok := resp.Object()
	if !ok {
		return "", nil
	}
	token, _ := obj[b.login.TokenField].(string)
	if token == "" {
		return "", nil
	}

	hc.Stash().Put(b.login.StashKey, token)
	install(hc, token)
	hc.Logger().Debug().Str("stash_key", b.login.StashKey).Msg("stored login token")
	return token, nil
}

// SetBearer installs token as the default Authorization header. A token
// written as {key} is looked up in the stash first.
func SetBearer(hc *harness.Context, token string) error {
	if strings.HasPrefix(token, "{") {
		key := strings.Trim(token, "{}")
		v, ok := hc.Stash().Get(key)
		if !ok {
			return fmt.Errorf("bearer token %s: no value stashed under %q", token, key)
		}
		token = v.String()
	}
	install(hc, token)
	return nil
}

func install(hc *harness.Context, token string) {
	hc.Run().Client.SetDefaultHeaders(map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  request.DefaultContentType,
	})
}
