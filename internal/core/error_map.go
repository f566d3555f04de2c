package core

import (
	"errors"
	"strings"
)

// CodedError is implemented by domain errors that carry a machine-readable code.
type CodedError interface {
	error
	ErrorCode() string
}

type ErrorInfo struct {
	Code       string
	Message    string
	HTTPStatus int
}

// MapError classifies err for logs, metrics, audit rows and the HTTP
// transport. Tool-level failures keep HTTP 200.
func MapError(err error, fallbackStatus int) ErrorInfo {
	if err == nil {
		return ErrorInfo{Code: "internal_error", Message: "internal server error", HTTPStatus: fallbackStatus}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	if errors.Is(err, ErrUnknownTool) {
		return ErrorInfo{Code: "unknown_tool", Message: msg, HTTPStatus: 404}
	}

	var coded CodedError
	if errors.As(err, &coded) {
		code := coded.ErrorCode()
		switch code {
		case "input_invalid":
			return ErrorInfo{Code: code, Message: msg, HTTPStatus: 400}
		case "tool_not_allowed", "repo_not_allowed", "path_not_allowed":
			return ErrorInfo{Code: code, Message: msg, HTTPStatus: 403}
		case "command_failed", "remote_unrecognized", "push_failed", "sign_in_timeout", "submit_timeout":
			return ErrorInfo{Code: code, Message: msg, HTTPStatus: 200}
		}
	}

	switch {
	case strings.Contains(lower, "repo") && strings.Contains(lower, "allowlist"):
		return ErrorInfo{Code: "repo_not_allowed", Message: msg, HTTPStatus: 403}
	case strings.Contains(lower, "tool") && strings.Contains(lower, "allowlist"):
		return ErrorInfo{Code: "tool_not_allowed", Message: msg, HTTPStatus: 403}
	case strings.Contains(lower, "forbidden by policy"):
		return ErrorInfo{Code: "path_not_allowed", Message: msg, HTTPStatus: 403}
	case strings.Contains(lower, "invalid json"), strings.Contains(lower, "request body must contain a single json object"):
		return ErrorInfo{Code: "input_invalid", Message: msg, HTTPStatus: 400}
	case strings.Contains(lower, "launch browser"), strings.Contains(lower, "open browser"),
		strings.Contains(lower, "pull request page"), strings.Contains(lower, "sign-in page"):
		return ErrorInfo{Code: "browser_failed", Message: msg, HTTPStatus: 200}
	case strings.Contains(lower, "command failed:"):
		return ErrorInfo{Code: "command_failed", Message: msg, HTTPStatus: 200}
	default:
		code := "internal_error"
		if fallbackStatus >= 400 && fallbackStatus < 500 {
			code = "bad_request"
		}
		return ErrorInfo{Code: code, Message: msg, HTTPStatus: fallbackStatus}
	}
}
