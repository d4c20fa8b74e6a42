package session

// Storage keys for the persisted session. The token's presence, not its
// content, is what marks the user as authenticated.
const (
	KeyUserToken = "userToken"
	KeyUsername  = "username"
)

// Session is the persisted proof of a prior successful login.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Authenticated reports whether the session carries a token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}
