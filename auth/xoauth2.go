package auth

import (
	"github.com/emersion/go-sasl"
)

// xoauth2Client implements the SASL XOAUTH2 mechanism used by Outlook and
// Gmail. The initial response carries the whole exchange:
//
//	user=<user>\x01auth=Bearer <accessToken>\x01\x01
type xoauth2Client struct {
	username string
	token    string
}

// NewXOAuth2 builds a sasl.Client for the given user and access token.
func NewXOAuth2(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next handles the server's error challenge; XOAUTH2 expects an empty
// client response to it.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return nil, nil
}
