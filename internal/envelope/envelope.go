// Package envelope holds the Bedrock agent action-group wire format: the
// inbound action request and the response builder every agent handler
// replies with.
package envelope

import (
	"github.com/goccy/go-json"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/fault"
)

const MessageVersion = "1.0"

// Parameter is one name/value pair from the action request's parameter
// list or a request-body properties schema.
type Parameter struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Value string `json:"value"`
}

// Content is one media-type entry of a request body. Bedrock sends either
// a raw body string or a decomposed properties list, never both.
type Content struct {
	Body       string      `json:"body,omitempty"`
	Properties []Parameter `json:"properties,omitempty"`
}

type RequestBody struct {
	Content map[string]Content `json:"content"`
}

// Message is one conversation-history turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ConversationHistory struct {
	Messages []Message `json:"messages"`
}

// ActionRequest is the inbound Bedrock agent action event.
type ActionRequest struct {
	MessageVersion      string               `json:"messageVersion"`
	ActionGroup         string               `json:"actionGroup"`
	APIPath             string               `json:"apiPath"`
	HTTPMethod          string               `json:"httpMethod"`
	InputText           string               `json:"inputText,omitempty"`
	Parameters          []Parameter          `json:"parameters,omitempty"`
	RequestBody         RequestBody          `json:"requestBody,omitempty"`
	SessionAttributes   map[string]string    `json:"sessionAttributes,omitempty"`
	ConversationHistory *ConversationHistory `json:"conversationHistory,omitempty"`
}

// Valid reports whether the event carries the minimum Bedrock action shape.
func (r *ActionRequest) Valid() bool {
	return r.MessageVersion != "" && r.ActionGroup != ""
}

// ResponseBody wraps the JSON reply body under its media type.
type ResponseBody struct {
	Body string `json:"body"`
}

type ResponsePayload struct {
	ActionGroup    string                  `json:"actionGroup"`
	APIPath        string                  `json:"apiPath"`
	HTTPMethod     string                  `json:"httpMethod"`
	HTTPStatusCode int                     `json:"httpStatusCode"`
	ResponseBody   map[string]ResponseBody `json:"responseBody"`
}

// ActionResponse is the outbound Bedrock agent action reply.
type ActionResponse struct {
	MessageVersion    string            `json:"messageVersion"`
	Response          ResponsePayload   `json:"response"`
	SessionAttributes map[string]string `json:"sessionAttributes,omitempty"`
}

// NewResponse builds a success reply. The payload is marshaled into the
// application/json body; session attributes pass through so downstream
// agents see the clock snapshot and any handoff data.
func NewResponse(req *ActionRequest, status int, payload any, sessionAttrs map[string]string) (*ActionResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnexpected, err, "response payload marshal failed")
	}
	return &ActionResponse{
		MessageVersion: MessageVersion,
		Response: ResponsePayload{
			ActionGroup:    req.ActionGroup,
			APIPath:        req.APIPath,
			HTTPMethod:     req.HTTPMethod,
			HTTPStatusCode: status,
			ResponseBody: map[string]ResponseBody{
				"application/json": {Body: string(body)},
			},
		},
		SessionAttributes: sessionAttrs,
	}, nil
}

// errorPayload is what the agent sees when a handler fails.
type errorPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewErrorResponse maps a fault to the envelope: the HTTP status comes
// from the fault kind and the message is the public rendering, so
// internal detail never reaches the model.
func NewErrorResponse(req *ActionRequest, err error, sessionAttrs map[string]string) *ActionResponse {
	payload := errorPayload{Success: false, Error: fault.PublicMessage(err)}
	resp, buildErr := NewResponse(req, fault.HTTPStatus(err), payload, sessionAttrs)
	if buildErr != nil {
		// Marshal of a two-field struct cannot realistically fail; keep a
		// hard fallback anyway so the agent always gets a valid envelope.
		return &ActionResponse{
			MessageVersion: MessageVersion,
			Response: ResponsePayload{
				ActionGroup:    req.ActionGroup,
				APIPath:        req.APIPath,
				HTTPMethod:     req.HTTPMethod,
				HTTPStatusCode: 500,
				ResponseBody: map[string]ResponseBody{
					"application/json": {Body: `{"success":false,"error":"internal error"}`},
				},
			},
			SessionAttributes: sessionAttrs,
		}
	}
	return resp
}
