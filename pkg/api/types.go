package api

// User is a stored user.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserInput is the request body for creating or replacing a user.
type UserInput struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
}

// UserFilter selects users whose name and/or email contain the given
// substrings, ignoring case. Empty fields do not filter.
type UserFilter struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Empty reports whether no criteria are set.
func (f UserFilter) Empty() bool {
	return f.Name == "" && f.Email == ""
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// WhoAmIResponse describes the caller of GET /whoami. Exactly one of
// User or Error is set.
type WhoAmIResponse struct {
	Message string         `json:"message,omitempty"`
	User    map[string]any `json:"user,omitempty"`
	Error   string         `json:"error,omitempty"`
}
