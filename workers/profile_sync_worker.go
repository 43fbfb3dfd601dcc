package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"hunter-fitness/logger"
	"hunter-fitness/services"
)

// RemoteProfile is the subset of the profile service payload we use.
type RemoteProfile struct {
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	AccountStatus string    `json:"account_status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProfileSyncWorker registers a hunter for every user that shows up in the profile
// service, so new users have a hunter before their first request.
type ProfileSyncWorker struct {
	hunters      *services.HunterService
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client

	since time.Time
}

func NewProfileSyncWorker(hunters *services.HunterService, baseURL, endpointPath, serviceToken string, interval time.Duration) *ProfileSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ProfileSyncWorker{
		hunters:      hunters,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	logger.Info().Str("url", w.baseURL).Dur("interval", w.interval).Msg("🔁 [SYNC] profile sync worker starting")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		logger.Warn().Err(err).Msg("⚠️ [SYNC] initial profile sync failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				logger.Error().Err(err).Msg("❌ [SYNC] profile sync failed")
			}
		case <-ctx.Done():
			logger.Info().Msg("⏹️ [SYNC] profile sync worker stopped")
			return
		}
	}
}

// SyncOnce pulls profiles changed since the last successful batch and registers any
// active user that has no hunter yet. Returns how many hunters were created.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	profiles, err := w.fetch(ctx, w.since)
	if err != nil {
		return 0, err
	}

	created := 0
	latest := w.since
	for _, p := range profiles {
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
		if p.ExternalID == "" || (p.AccountStatus != "" && p.AccountStatus != "active") {
			continue
		}
		name := p.Username
		if name == "" {
			name = "Hunter"
		}
		_, isNew, err := w.hunters.RegisterHunter(ctx, p.ExternalID, name)
		if err != nil {
			logger.Warn().Err(err).Str("external_id", p.ExternalID).Msg("⚠️ [SYNC] failed to register hunter")
			continue
		}
		if isNew {
			created++
		}
	}
	w.since = latest

	logger.Info().Int("profiles", len(profiles)).Int("created", created).Msg("✅ [SYNC] profiles synced")
	return created, nil
}

func (w *ProfileSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile service request failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile service returned %d: %s", resp.StatusCode, body)
	}

	var out profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode profile response: %w", err)
	}
	return out.Users, nil
}
