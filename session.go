package loandash

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Session is the locally persisted authentication state. Every field is
// optional, the zero Session is "logged out".
type Session struct {
	Token  string `json:"token,omitempty"`
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Authenticated reports whether the session carries a token. It says nothing
// about the token being accepted by the backend.
func (s Session) Authenticated() bool { return s.Token != "" }

// Identity is the user as known by the backend.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
}

// UnmarshalJSON accepts both "user_id" and "userId".
func (id *Identity) UnmarshalJSON(data []byte) error {
	var raw struct {
		UserID  string `json:"user_id"`
		UserID2 string `json:"userId"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id.UserID = raw.UserID
	if id.UserID == "" {
		id.UserID = raw.UserID2
	}
	id.Email = raw.Email
	id.Phone = raw.Phone
	return nil
}
