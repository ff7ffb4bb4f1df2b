package domain

// Session is the authenticated identity held by the console.
type Session struct {
	Token string `json:"-"`
	User  *User  `json:"user,omitempty"`
}

func (s Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

func (s Session) Role() Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}
