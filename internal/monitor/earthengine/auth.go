package earthengine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// Credentials identifies the service account used for Earth Engine.
type Credentials struct {
	ServiceAccount string
	KeyFile        string
	// Project overrides the project_id recorded in the key file.
	Project string
}

type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	ProjectID   string `json:"project_id"`
}

// Bootstrap builds a service account credential from the key file, proves it
// by minting an access token, and opens an Earth Engine session.
// Any error is meant to abort the process; there is no retry.
func Bootstrap(ctx context.Context, creds Credentials, opts ...option.ClientOption) (*Session, error) {
	if strings.TrimSpace(creds.ServiceAccount) == "" {
		return nil, ErrMissingServiceAccount
	}

	data, err := os.ReadFile(creds.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingKeyFile, err)
	}

	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingKeyFile, err)
	}
	if !strings.EqualFold(key.ClientEmail, creds.ServiceAccount) {
		return nil, fmt.Errorf("%w: key is for %q", ErrAccountMismatch, key.ClientEmail)
	}

	project := creds.Project
	if project == "" {
		project = key.ProjectID
	}
	if project == "" {
		return nil, ErrMissingProject
	}

	conf, err := google.JWTConfigFromJSON(data, Scope, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}

	ts := oauth2.ReuseTokenSource(nil, conf.TokenSource(ctx))
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialRejected, err)
	}

	return NewSession(ctx, project, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
}
