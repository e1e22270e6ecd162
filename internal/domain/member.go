// Package domain holds room and participant identities.
package domain

// Member represents a connection's participation meta.
// No transport or lifecycle logic here.
type Member struct {
	// ClientToken is the browser-scoped cookie token, informational only.
	ClientToken string
	RemoteAddr  string
}

// NewMember builds the meta for one connection.
func NewMember(clientToken, remoteAddr string) *Member {
	return &Member{ClientToken: clientToken, RemoteAddr: remoteAddr}
}
