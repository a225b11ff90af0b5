package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	relayerrors "github.com/hrygo/chatrelay/server/internal/errors"
)

// Request parameter names, accepted as query or form values.
const (
	paramName   = "Name"
	paramEmail  = "email"
	paramPrompt = "prompt"
)

type chatParams struct {
	Name   string
	Email  string
	Prompt string
}

func extractChatParams(c echo.Context) (*chatParams, *relayerrors.RelayError) {
	params := &chatParams{
		Name:   strings.TrimSpace(c.FormValue(paramName)),
		Email:  strings.TrimSpace(c.FormValue(paramEmail)),
		Prompt: strings.TrimSpace(c.FormValue(paramPrompt)),
	}
	if params.Name == "" || params.Email == "" || params.Prompt == "" {
		slog.Warn("chat request with missing parameters",
			slog.Bool("has_name", params.Name != ""),
			slog.Bool("has_email", params.Email != ""),
			slog.Bool("has_prompt", params.Prompt != ""))
		return nil, relayerrors.InvalidArgument("one or more parameters missing")
	}
	return params, nil
}

func badRequest(c echo.Context, err *relayerrors.RelayError) error {
	return c.String(err.HTTPStatus(), "An error has occured: "+err.Message)
}

// Chat relays the prompt to the assistant.
// GET|POST /api/chat?Name=&email=&prompt=
func (s *APIV1Service) Chat(c echo.Context) error {
	params, err := extractChatParams(c)
	if err != nil {
		return badRequest(c, err)
	}

	status, body := s.ChatService.Chat(c.Request().Context(), params.Name, params.Email, params.Prompt)
	return c.String(status, body)
}

// Mock echoes the parameters without contacting the assistant.
// GET|POST /api/mock?Name=&email=&prompt=
func (*APIV1Service) Mock(c echo.Context) error {
	params, err := extractChatParams(c)
	if err != nil {
		return badRequest(c, err)
	}
	return c.String(http.StatusOK, fmt.Sprintf("Hello, %s! So you like to talk about %s", params.Name, params.Prompt))
}
