package gateway

import (
	"context"
	"errors"
	"net/http"
)

const (
	msgNetwork     = "Network or server problem. Check your connection and try again."
	msgSession     = "Your session has expired. Please log in again."
	msgServer      = "The server could not complete the request. Please try again later."
	msgDecode      = "The server sent an unexpected response."
	msgCancelled   = "The request was cancelled."
	msgUnavailable = "Something went wrong."
)

// UserMessage maps any error to the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	if errors.Is(err, context.Canceled) {
		return msgCancelled
	}

	var (
		netErr  *NetworkError
		authErr *AuthRejectedError
		valErr  *ValidationError
		srvErr  *ServerError
		reqErr  *RequestError
		decErr  *DecodeError
	)
	switch {
	case errors.As(err, &netErr):
		return msgNetwork
	case errors.As(err, &authErr):
		if authErr.Message != "" {
			return authErr.Message
		}
		return msgSession
	case errors.As(err, &valErr):
		return valErr.Error()
	case errors.As(err, &srvErr):
		return msgServer
	case errors.As(err, &reqErr):
		if reqErr.Message != "" {
			return reqErr.Message
		}
		if text := http.StatusText(reqErr.Status); text != "" {
			return text
		}
		return msgUnavailable
	case errors.As(err, &decErr):
		return msgDecode
	}
	return err.Error()
}
