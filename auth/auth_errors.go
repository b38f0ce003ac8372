package auth

import "errors"

var (
	LoginFailedErr        = errors.New("login failed")
	OAuthFailedErr        = errors.New("oauth sign in failed")
	MissingAccessTokenErr = errors.New("missing access token")
)
