package httpapi

import (
	"context"
	"net/url"
	"strings"

	"droidscope/internal/session"
	"droidscope/internal/settings"
	"droidscope/pkg/types"
)

// Controller implements Service on top of a session and its settings store.
type Controller struct {
	Session *session.Session
	Store   *settings.Store
}

func (c *Controller) Status() types.StatusResponse { return c.Session.Status() }

func (c *Controller) Running() bool { return c.Session.Running() }

func (c *Controller) Start(ctx context.Context) (types.SessionResponse, error) {
	if err := c.Session.Start(ctx); err != nil {
		return types.SessionResponse{}, err
	}
	st := c.Session.Status()
	return types.SessionResponse{Running: st.Running, Source: st.Source}, nil
}

func (c *Controller) Stop() types.SessionResponse {
	c.Session.Stop()
	return types.SessionResponse{Running: false, Source: c.Session.Status().Source}
}

func (c *Controller) Settings() types.SettingsResponse {
	v := c.Store.Get()
	resp := types.SettingsResponse{WebhookURL: v.WebhookURL, PrivateServerURL: v.PrivateServerURL}
	if snap, ok := c.Session.Values(); ok && snap != v {
		resp.PendingRestart = true
	}
	return resp
}

func (c *Controller) UpdateSettings(req types.SettingsRequest) (types.SettingsResponse, error) {
	v := c.Store.Get()
	if req.WebhookURL != nil {
		u := strings.TrimSpace(*req.WebhookURL)
		if err := validateWebhookURL(u); err != nil {
			return types.SettingsResponse{}, err
		}
		v.WebhookURL = u
	}
	if req.PrivateServerURL != nil {
		v.PrivateServerURL = *req.PrivateServerURL
	}
	if err := c.Store.Set(v); err != nil {
		return types.SettingsResponse{}, err
	}
	return c.Settings(), nil
}

// validateWebhookURL accepts an empty value (clears the endpoint) or an
// absolute http(s) URL.
func validateWebhookURL(s string) error {
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return badRequest("webhook_url must be an absolute http(s) URL")
	}
	return nil
}
