package models

const DefaultTokenType = "Bearer"

// AuthSession is the token pair used against the backend API. It is
// persisted after every change.
type AuthSession struct {
	AccessToken  string `json:"access_token" mapstructure:"access_token"`
	RefreshToken string `json:"refresh_token" mapstructure:"refresh_token"`
	TokenType    string `json:"token_type" mapstructure:"token_type"`
}

func (s AuthSession) Empty() bool {
	return s.AccessToken == ""
}

// Authorization returns the header value, or "" when there is no token.
func (s AuthSession) Authorization() string {
	if s.AccessToken == "" {
		return ""
	}
	tokenType := s.TokenType
	if tokenType == "" {
		tokenType = DefaultTokenType
	}
	return tokenType + " " + s.AccessToken
}

type User struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	UserID   int    `json:"userId"`
	ComID    int    `json:"comId"`
}

// TokenResponse is what the token endpoint answers for both the password
// and the refresh_token grants.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	FullName         string `json:"fullName"`
	Username         string `json:"username"`
	UserID           int    `json:"userId"`
	ComID            int    `json:"comId"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}
