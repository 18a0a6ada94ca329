package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/mtd/internal/output"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	driveScope = "https://www.googleapis.com/auth/drive.readonly"
	tokenFile  = ".mtd-token.json"
)

// PromptFunc shows the consent URL and returns the authorization code.
type PromptFunc func(authURL string) (string, error)

func terminalPrompt(authURL string) (string, error) {
	output.PrintDetail("\nVisit this URL to get the authorization code:\n")
	fmt.Printf("%s\n", authURL)
	output.PrintDetail("\nAfter authorizing, enter the authorization code:")
	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return "", fmt.Errorf("unable to read authorization code: %w", err)
	}
	return code, nil
}

// tokenSourceFromCredentials builds a refreshing token source from an OAuth
// client file. The token is cached in tokenPath; without a cached token the
// consent flow runs through prompt.
func tokenSourceFromCredentials(ctx context.Context, credentialsFile, tokenPath string, prompt PromptFunc) (oauth2.TokenSource, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, driveScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file: %w", err)
	}
	token, err := tokenFromFile(tokenPath)
	if err != nil {
		log.Debug().Str("op", "google-drive/auth").Msg("no cached token, starting OAuth flow")
		code, err := prompt(config.AuthCodeURL("state-token", oauth2.AccessTypeOffline))
		if err != nil {
			return nil, err
		}
		token, err = config.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to exchange auth code for token: %w", err)
		}
		if err := saveToken(tokenPath, token); err != nil {
			log.Warn().Str("op", "google-drive/auth").Err(err).Msg("unable to save new token")
		}
	}
	saving := &savingTokenSource{base: config.TokenSource(ctx, token), path: tokenPath, last: token.AccessToken}
	return oauth2.ReuseTokenSource(token, saving), nil
}

// savingTokenSource writes every refreshed token back to the cache file.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string
	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := saveToken(s.path, token); err != nil {
			log.Warn().Str("op", "google-drive/auth").Err(err).Msg("unable to save refreshed token")
		}
	}
	return token, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

func saveToken(file string, token *oauth2.Token) error {
	if dir := filepath.Dir(file); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("unable to create token directory: %w", err)
		}
	}
	f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("unable to encode token: %w", err)
	}
	return nil
}
