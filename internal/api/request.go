package api

import (
	"bytes"
	"strings"

	"github.com/tidwall/gjson"

	"askbridge/internal/models"
)

const (
	msgInvalidJSON   = "Failed to parse request body as JSON."
	msgNotAnObject   = "Request body must be a JSON object."
	msgModelRequired = "`model` is required."
	msgInputRequired = "`userInput` is required."
	msgBodyTooLarge  = "Request body is too large."
)

// parseAskRequest validates a raw /ask body and converts it into the typed
// request. Loosely typed optional fields are dropped rather than rejected.
func parseAskRequest(body []byte) (models.AskRequest, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return models.AskRequest{}, &models.InvalidRequestError{Reason: msgInvalidJSON}
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return models.AskRequest{}, &models.InvalidRequestError{Reason: msgNotAnObject}
	}

	toolField := root.Get("tool")
	if toolField.Type != gjson.String {
		return models.AskRequest{}, &models.UnsupportedToolError{Tool: fieldText(toolField)}
	}
	tool, err := models.ParseTool(toolField.Str)
	if err != nil {
		return models.AskRequest{}, err
	}

	model := root.Get("model")
	if model.Type != gjson.String || model.Str == "" {
		return models.AskRequest{}, &models.InvalidRequestError{Reason: msgModelRequired}
	}
	userInput := root.Get("userInput")
	if userInput.Type != gjson.String || strings.TrimSpace(userInput.Str) == "" {
		return models.AskRequest{}, &models.InvalidRequestError{Reason: msgInputRequired}
	}

	req := models.AskRequest{
		Tool:      tool,
		Model:     model.Str,
		UserInput: userInput.Str,
	}
	if dc := root.Get("designContext"); dc.Type == gjson.String {
		req.DesignContext = dc.Str
	}
	if id := root.Get("conversationId"); id.Type == gjson.String && id.Str != "" {
		req.ConversationID = id.Str
	}
	if opts := root.Get("options"); opts.IsObject() {
		if ms := opts.Get("timeoutMs"); ms.Type == gjson.Number {
			v := ms.Float()
			req.Options = &models.AskOptions{TimeoutMs: &v}
		}
	}
	return req, nil
}

// fieldText renders a non-string field for error messages.
func fieldText(r gjson.Result) string {
	if r.Type == gjson.Null {
		return ""
	}
	return r.Raw
}
