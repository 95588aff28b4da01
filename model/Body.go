package model

// PostBody defines the body when posting a new image
type PostBody struct {
	Caption  string `json:"caption"`
	Image    []byte `json:"image"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

// CommentBody defines the body when commenting a post.
// ReplyTo targets an existing comment of the same post
type CommentBody struct {
	Text    string `json:"text"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// SignUpBody defines the body of account creation
type SignUpBody struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// SignInBody defines the body of account connection
type SignInBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileBody defines the body of profile updates; nil
// fields are left untouched
type ProfileBody struct {
	DisplayName *string `json:"display_name,omitempty"`
	PhotoUrl    *string `json:"photo_url,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}
