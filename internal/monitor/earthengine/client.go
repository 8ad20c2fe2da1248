package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/option/internaloption"
	htransport "google.golang.org/api/transport/http"
)

const (
	basePath         = "https://earthengine.googleapis.com/"
	basePathTemplate = "https://earthengine.UNIVERSE_DOMAIN/"

	// Scope grants read and compute access to Earth Engine.
	Scope = "https://www.googleapis.com/auth/earthengine"
	// CloudPlatformScope is required for project-scoped REST calls.
	CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
)

// Expression is the serialized computation graph accepted by value:compute.
type Expression struct {
	Result string               `json:"result"`
	Values map[string]ValueNode `json:"values"`
}

// ValueNode is one node of an Expression: a constant or a function call.
type ValueNode struct {
	ConstantValue           any                 `json:"constantValue,omitempty"`
	FunctionInvocationValue *FunctionInvocation `json:"functionInvocationValue,omitempty"`
}

// FunctionInvocation calls a named Earth Engine algorithm.
type FunctionInvocation struct {
	FunctionName string               `json:"functionName"`
	Arguments    map[string]ValueNode `json:"arguments"`
}

type computeValueRequest struct {
	Expression *Expression `json:"expression"`
}

type computeValueResponse struct {
	Result any `json:"result"`
}

// Session is an authenticated Earth Engine REST handle bound to a project.
type Session struct {
	client   *http.Client
	endpoint string
	Project  string
}

// NewSession opens a session with explicit client options. Bootstrap is the
// normal entry point; tests use this to point at a fake endpoint.
func NewSession(ctx context.Context, project string, opts ...option.ClientOption) (*Session, error) {
	if project == "" {
		return nil, ErrMissingProject
	}

	opts = append([]option.ClientOption{internaloption.WithDefaultScopes(Scope, CloudPlatformScope)}, opts...)
	opts = append(opts,
		internaloption.WithDefaultEndpoint(basePath),
		internaloption.WithDefaultEndpointTemplate(basePathTemplate),
	)
	client, endpoint, err := htransport.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create earthengine client: %w", err)
	}
	if endpoint == "" {
		endpoint = basePath
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &Session{client: client, endpoint: endpoint, Project: project}, nil
}

// ComputeValue evaluates expr and returns the decoded "result" field.
// Non-2xx replies come back as *googleapi.Error.
func (s *Session) ComputeValue(ctx context.Context, expr *Expression) (any, error) {
	body, err := json.Marshal(computeValueRequest{Expression: expr})
	if err != nil {
		return nil, fmt.Errorf("marshal expression: %w", err)
	}

	target := s.endpoint + "v1/projects/" + url.PathEscape(s.Project) + "/value:compute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if err := googleapi.CheckResponse(res); err != nil {
		return nil, err
	}

	var out computeValueResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode value:compute response: %w", err)
	}
	return out.Result, nil
}
