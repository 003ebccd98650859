// Package microsoft provides OAuth2 and HTTP support for the Microsoft Graph API.
//
// This package provides:
//   - OAuth2 handler for the Microsoft identity platform (auth code with PKCE,
//     device code and refresh token grants)
//   - Rate limiting for Microsoft Graph and OneNote requests
//   - Error classification for Microsoft Graph responses
//   - User profile lookup for account identification
//
// Endpoints default to the "common" tenant, which accepts both personal
// Microsoft accounts and Azure AD accounts.
//
// # OAuth2 Flow
//
//   - Auth URL: https://login.microsoftonline.com/{tenant}/oauth2/v2.0/authorize
//   - Token URL: https://login.microsoftonline.com/{tenant}/oauth2/v2.0/token
//   - Device URL: https://login.microsoftonline.com/{tenant}/oauth2/v2.0/devicecode
//
// The "offline_access" scope is required for refresh tokens.
//
// # Rate Limits
//
// The OneNote API throttles per user and per app far below the general Graph
// quota, roughly 120 requests per minute. A 429 response carries Retry-After;
// the limiter honours it for subsequent requests.
package microsoft
