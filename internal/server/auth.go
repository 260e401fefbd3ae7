package server

import (
	"errors"
	"net/http"
	"strings"
)

var errNoToken = errors.New("no bearer token")

// playerToken extracts the bearer token from the Authorization header.
func playerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		return "", errNoToken
	}
	return token, nil
}
