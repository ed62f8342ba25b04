package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	appLog "rostercal/internal/log"
)

// ErrCredential marks missing or unusable OAuth2 credential material.
// Credential failures are fatal and occur before any remote mutation.
var ErrCredential = errors.New("calendar credential failure")

// Credentials bundles the installed-app OAuth2 client config, the stored
// user token, and a reusing token source. The token file is rewritten
// when a refresh rotates the token.
type Credentials struct {
	conf      *oauth2.Config
	tok       *oauth2.Token
	tokenFile string
	src       oauth2.TokenSource
}

// LoadCredentials reads the OAuth2 client JSON and the stored user token.
// Both must exist; the interactive authorization flow that mints the
// first token is done out of band.
func LoadCredentials(credentialsFile, tokenFile string) (*Credentials, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read client credentials: %v", ErrCredential, err)
	}

	conf, err := google.ConfigFromJSON(raw, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parse client credentials: %v", ErrCredential, err)
	}

	tok, err := readToken(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read token: %v", ErrCredential, err)
	}

	c := &Credentials{
		conf:      conf,
		tok:       tok,
		tokenFile: tokenFile,
	}
	c.src = oauth2.ReuseTokenSource(tok, conf.TokenSource(context.Background(), tok))
	return c, nil
}

// TokenSource exposes the reusing token source for API clients.
func (c *Credentials) TokenSource() oauth2.TokenSource {
	return c.src
}

// SaveIfRotated persists the current token when a refresh rotated it,
// reporting whether a write happened. Call after a sync run so the next
// run starts from the freshest refresh credential.
func (c *Credentials) SaveIfRotated() (bool, error) {
	cur, err := c.src.Token()
	if err != nil {
		return false, fmt.Errorf("%w: refresh token: %v", ErrCredential, err)
	}

	if cur.AccessToken == c.tok.AccessToken && cur.RefreshToken == c.tok.RefreshToken {
		return false, nil
	}

	if err := writeToken(c.tokenFile, cur); err != nil {
		return false, err
	}
	appLog.Info("oauth token rotated; persisted", "token_file", c.tokenFile)
	c.tok = cur
	return true, nil
}

func readToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token file holds no usable token")
	}
	return &tok, nil
}

func writeToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	// Token grants calendar write access; keep it owner-only.
	return os.WriteFile(path, data, 0o600)
}
