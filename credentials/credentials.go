package credentials

// Credential is the pair of bearer tokens issued by the CRM API.
// AccessToken authorizes API calls; RefreshToken, when present, is used
// solely to mint a new access token. An empty AccessToken means the
// session is anonymous.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// Anonymous reports whether the credential carries no access token.
func (c Credential) Anonymous() bool {
	return c.AccessToken == ""
}

// Refreshable reports whether the credential can be refreshed.
func (c Credential) Refreshable() bool {
	return c.RefreshToken != ""
}
