// ABOUTME: Typed endpoint methods for auth, catalog, templates, programs, sessions, progress and sync.
// ABOUTME: Ping probes the unauthenticated /health route for connectivity checks.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Login exchanges credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &pair); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := c.tokens.SetTokens(pair.AccessToken, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	return &pair, nil
}

// Register creates an account and stores the returned token pair.
func (c *Client) Register(ctx context.Context, email, password, displayName string) (*TokenPair, error) {
	body := registerRequest{Email: email, Password: password, DisplayName: displayName}
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &pair); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if err := c.tokens.SetTokens(pair.AccessToken, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	return &pair, nil
}

// Logout tells the server we are done. Tokens are left for the caller to clear.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*UserDTO, error) {
	var u UserDTO
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateMe changes profile fields.
func (c *Client) UpdateMe(ctx context.Context, upd UserUpdate) (*UserDTO, error) {
	var u UserDTO
	if err := c.do(ctx, http.MethodPut, "/auth/me", upd, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListExercises returns the catalog plus the user's custom exercises.
func (c *Client) ListExercises(ctx context.Context) ([]ExerciseDTO, error) {
	var out []ExerciseDTO
	if err := c.do(ctx, http.MethodGet, "/exercises", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTemplates returns template summaries.
func (c *Client) ListTemplates(ctx context.Context) ([]TemplateDTO, error) {
	var out []TemplateDTO
	if err := c.do(ctx, http.MethodGet, "/templates", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTemplate returns a template with its prescriptions.
func (c *Client) GetTemplate(ctx context.Context, id string) (*TemplateDetailDTO, error) {
	var out TemplateDetailDTO
	if err := c.do(ctx, http.MethodGet, "/templates/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTemplate submits a new template with its full prescription list.
func (c *Client) CreateTemplate(ctx context.Context, in TemplateInput) (*TemplateDetailDTO, error) {
	var out TemplateDetailDTO
	if err := c.do(ctx, http.MethodPost, "/templates", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTemplate replaces a template and all of its prescriptions.
func (c *Client) UpdateTemplate(ctx context.Context, id string, in TemplateInput) (*TemplateDetailDTO, error) {
	var out TemplateDetailDTO
	if err := c.do(ctx, http.MethodPut, "/templates/"+url.PathEscape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTemplate removes a template.
func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/templates/"+url.PathEscape(id), nil, nil)
}

// ListPrograms returns program summaries.
func (c *Client) ListPrograms(ctx context.Context) ([]ProgramDTO, error) {
	var out []ProgramDTO
	if err := c.do(ctx, http.MethodGet, "/programs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProgram returns a program with its routines.
func (c *Client) GetProgram(ctx context.Context, id string) (*ProgramDetailDTO, error) {
	var out ProgramDetailDTO
	if err := c.do(ctx, http.MethodGet, "/programs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProgram submits a new program with its routine list.
func (c *Client) CreateProgram(ctx context.Context, in ProgramInput) (*ProgramDetailDTO, error) {
	var out ProgramDetailDTO
	if err := c.do(ctx, http.MethodPost, "/programs", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProgram replaces a program and its routines.
func (c *Client) UpdateProgram(ctx context.Context, id string, in ProgramInput) (*ProgramDetailDTO, error) {
	var out ProgramDetailDTO
	if err := c.do(ctx, http.MethodPut, "/programs/"+url.PathEscape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProgram removes a program.
func (c *Client) DeleteProgram(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/programs/"+url.PathEscape(id), nil, nil)
}

// ActivateProgram makes id the active program; the server deactivates the rest.
func (c *Client) ActivateProgram(ctx context.Context, id string) (*ProgramDTO, error) {
	return c.programAction(ctx, id, "activate")
}

// DeactivateProgram clears the active flag on id.
func (c *Client) DeactivateProgram(ctx context.Context, id string) (*ProgramDTO, error) {
	return c.programAction(ctx, id, "deactivate")
}

// AdvanceProgram moves id to its next routine.
func (c *Client) AdvanceProgram(ctx context.Context, id string) (*ProgramDTO, error) {
	return c.programAction(ctx, id, "advance")
}

func (c *Client) programAction(ctx context.Context, id, action string) (*ProgramDTO, error) {
	var out ProgramDTO
	if err := c.do(ctx, http.MethodPost, "/programs/"+url.PathEscape(id)+"/"+action, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessions returns session summaries.
func (c *Client) ListSessions(ctx context.Context) ([]SessionDTO, error) {
	var out []SessionDTO
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession returns a session with its sets.
func (c *Client) GetSession(ctx context.Context, id string) (*SessionDetailDTO, error) {
	var out SessionDetailDTO
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProgress returns every weekly max-weight record.
func (c *Client) ListProgress(ctx context.Context) ([]ProgressDTO, error) {
	var out []ProgressDTO
	if err := c.do(ctx, http.MethodGet, "/progress", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sync pushes a batch of pending sessions and sets.
func (c *Client) Sync(ctx context.Context, req SyncRequest) (*SyncResponse, error) {
	if req.Sessions == nil {
		req.Sessions = []SyncSession{}
	}
	if req.Sets == nil {
		req.Sets = []SyncSet{}
	}
	var out SyncResponse
	if err := c.do(ctx, http.MethodPost, "/sync", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HealthURL is the unauthenticated health route. It sits at the server root,
// outside the /api prefix.
func (c *Client) HealthURL() string {
	return strings.TrimSuffix(c.baseURL, "/api") + "/health"
}

// Ping reports whether the server answered the health route with a 2xx.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, c.HealthURL(), nil, false)
	if err != nil {
		return err
	}
	defer drain(resp)
	return decodeResponse(resp, nil)
}
