package microsoft

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driven"
)

// GraphBaseURL is the Microsoft Graph API base URL.
const GraphBaseURL = "https://graph.microsoft.com/v1.0"

// OneNoteBaseURL is the root of the signed-in user's OneNote resources.
const OneNoteBaseURL = GraphBaseURL + "/me/onenote"

// UserInfo contains the user's basic profile information from Microsoft Graph.
type UserInfo struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// GetUserInfo fetches the user's profile information using an access token.
func GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	return FetchUserInfo(ctx, &http.Client{Timeout: 30 * time.Second}, GraphBaseURL, accessToken)
}

// FetchUserInfo fetches /me from the given Graph base URL through transport.
func FetchUserInfo(
	ctx context.Context, transport driven.Transport, baseURL, accessToken string,
) (*UserInfo, error) {
	url := baseURL + "/me?$select=id,displayName,mail,userPrincipalName"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := transport.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request failed with status %d: %w",
			resp.StatusCode, WrapError(resp.StatusCode))
	}

	var userInfo UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}

	return &userInfo, nil
}

// GetUserEmail returns the user's email address.
// Falls back to userPrincipalName if mail is not set.
func (u *UserInfo) GetUserEmail() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}

// Account converts the profile into the domain account.
func (u *UserInfo) Account() domain.Account {
	return domain.Account{
		ID:          u.ID,
		Username:    u.GetUserEmail(),
		DisplayName: u.DisplayName,
	}
}
