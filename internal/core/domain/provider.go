package domain

// AuthFlow identifies how the interactive sign-in is performed.
type AuthFlow string

const (
	// AuthFlowDeviceCode prints a code the user enters at microsoft.com/devicelogin.
	AuthFlowDeviceCode AuthFlow = "device"
	// AuthFlowBrowser opens the system browser and listens on a loopback redirect.
	AuthFlowBrowser AuthFlow = "browser"
)

// Valid reports whether the flow is one of the supported values.
func (f AuthFlow) Valid() bool {
	return f == AuthFlowDeviceCode || f == AuthFlowBrowser
}

// OAuthProviderConfig holds the app registration used to sign in.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	// AuthURL, TokenURL and DeviceAuthURL override the tenant endpoints when set.
	AuthURL       string
	TokenURL      string
	DeviceAuthURL string
	Scopes        []string
}

// AuthProvider is a configured identity provider.
type AuthProvider struct {
	Name  string
	Flow  AuthFlow
	OAuth *OAuthProviderConfig
}
