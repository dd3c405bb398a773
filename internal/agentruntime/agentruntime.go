// Package agentruntime invokes the Bedrock agent and collects its
// streamed completion into one reply string.
package agentruntime

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/fault"
)

// Invoker asks the agent a question within a session. Implementations
// return the full completion text.
type Invoker interface {
	Invoke(ctx context.Context, sessionID, inputText string, sessionAttrs map[string]string) (string, error)
}

// BedrockAPI is the slice of the SDK client the invoker needs.
type BedrockAPI interface {
	InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
}

type Client struct {
	api     BedrockAPI
	agentID string
	aliasID string
}

type Options struct {
	API          BedrockAPI
	AgentID      string
	AgentAliasID string
}

func New(opts Options) (*Client, error) {
	if opts.API == nil {
		return nil, errors.New("agentruntime: api is required")
	}
	if strings.TrimSpace(opts.AgentID) == "" || strings.TrimSpace(opts.AgentAliasID) == "" {
		return nil, errors.New("agentruntime: agent id and alias id are required")
	}
	return &Client{api: opts.API, agentID: opts.AgentID, aliasID: opts.AgentAliasID}, nil
}

// Invoke streams the agent's completion and concatenates the chunks.
func (c *Client) Invoke(ctx context.Context, sessionID, inputText string, sessionAttrs map[string]string) (string, error) {
	input := &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(c.agentID),
		AgentAliasId: aws.String(c.aliasID),
		SessionId:    aws.String(sessionID),
		InputText:    aws.String(inputText),
	}
	if len(sessionAttrs) > 0 {
		input.SessionState = &types.SessionState{SessionAttributes: sessionAttrs}
	}

	out, err := c.api.InvokeAgent(ctx, input)
	if err != nil {
		return "", fault.Wrap(fault.KindUpstreamConnection, err, "agent invocation failed")
	}
	stream := out.GetStream()
	defer stream.Close()

	var b strings.Builder
	for event := range stream.Events() {
		if chunk, ok := event.(*types.ResponseStreamMemberChunk); ok {
			b.Write(chunk.Value.Bytes)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fault.Wrap(fault.KindUpstreamConnection, err, "agent response stream failed")
	}

	completion := strings.TrimSpace(b.String())
	if completion == "" {
		return "", fault.New(fault.KindUpstreamBusiness, "agent returned an empty completion")
	}
	return completion, nil
}
