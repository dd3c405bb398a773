package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/envelope"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/fault"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/jsonutil"
	"github.com/GitVantrue/bedrock-slack-fitcloud/internal/slackclient"
)

// Session attribute keys the supervisor uses to hand the cost result over.
const (
	AttrCostData      = "cost_response_data"
	AttrCostProcessed = "cost_response_processed"
)

// Uploader is the slice of the Slack client the agent needs.
type Uploader interface {
	UploadFile(ctx context.Context, channelID, filename, comment string, content []byte) (slackclient.UploadResult, error)
}

// Agent builds the workbook from a prior cost response and uploads it.
type Agent struct {
	uploader  Uploader
	channelID string
	logger    *slog.Logger
}

type AgentOptions struct {
	Uploader  Uploader
	ChannelID string
	Logger    *slog.Logger
}

func NewAgent(opts AgentOptions) (*Agent, error) {
	if opts.Uploader == nil {
		return nil, errors.New("report: uploader is required")
	}
	if strings.TrimSpace(opts.ChannelID) == "" {
		return nil, errors.New("report: channel id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{uploader: opts.Uploader, channelID: opts.ChannelID, logger: logger}, nil
}

// Outcome is the agent-facing payload after a report run.
type Outcome struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	FileID      string `json:"file_id,omitempty"`
	Permalink   string `json:"permalink,omitempty"`
	ReportTitle string `json:"report_title,omitempty"`
	DataSource  string `json:"data_source,omitempty"`
}

// Handle recovers the item list, builds the workbook, uploads it, and
// wraps the outcome in an action envelope.
func (a *Agent) Handle(ctx context.Context, req *envelope.ActionRequest) *envelope.ActionResponse {
	if !req.Valid() {
		err := fault.New(fault.KindClientParameter, "Invalid event format from Bedrock Agent.")
		return envelope.NewErrorResponse(req, err, req.SessionAttributes)
	}

	records, source, err := RecoverItems(req)
	if err != nil {
		a.logger.Warn("report_data_recovery_failed", "error", err)
		return envelope.NewErrorResponse(req, err, req.SessionAttributes)
	}

	outcome, err := a.Generate(ctx, records, source)
	if err != nil {
		a.logger.Warn("report_generation_failed", "error", err)
		return envelope.NewErrorResponse(req, err, req.SessionAttributes)
	}

	resp, buildErr := envelope.NewResponse(req, 200, outcome, req.SessionAttributes)
	if buildErr != nil {
		return envelope.NewErrorResponse(req, buildErr, req.SessionAttributes)
	}
	return resp
}

// Generate builds and uploads the workbook for an already-recovered list.
func (a *Agent) Generate(ctx context.Context, records []map[string]any, source string) (*Outcome, error) {
	workbook, err := BuildWorkbook(records)
	if err != nil {
		return nil, err
	}

	comment := fmt.Sprintf("📊 %s가 생성되었습니다.", workbook.Title)
	result, err := a.uploader.UploadFile(ctx, a.channelID, workbook.Filename, comment, workbook.Content)
	if err != nil {
		switch {
		case errors.Is(err, slackclient.ErrNotInChannel):
			return nil, fault.Wrap(fault.KindClientParameter, err, "봇이 채널에 추가되지 않았습니다. 슬랙 채널에 봇을 추가해주세요.")
		case errors.Is(err, slackclient.ErrChannelNotFound):
			return nil, fault.Wrap(fault.KindClientParameter, err, "채널을 찾을 수 없습니다. 채널 ID를 확인해주세요.")
		default:
			return nil, fault.Wrap(fault.KindUpstreamConnection, err, "파일 업로드에 실패했습니다.")
		}
	}

	a.logger.Info("report_uploaded",
		"title", workbook.Title,
		"file_id", result.FileID,
		"records", len(records),
		"source", source)

	permalink := result.Permalink
	if permalink == "" {
		permalink = "링크 없음"
	}
	message := fmt.Sprintf(
		"📊 **%s 생성 완료!**\n✅ 엑셀 파일이 슬랙 채널에 업로드되었습니다.\n🔗 파일 링크: %s\n📁 파일 ID: %s",
		workbook.Title, permalink, result.FileID)
	return &Outcome{
		Success:     true,
		Message:     message,
		FileID:      result.FileID,
		Permalink:   result.Permalink,
		ReportTitle: workbook.Title,
		DataSource:  source,
	}, nil
}

// RecoverItems digs the cost item list out of the request: conversation
// history first (the cost agent's last reply), then the session-attribute
// handoff. Returns where the data came from for the reply footer.
func RecoverItems(req *envelope.ActionRequest) ([]map[string]any, string, error) {
	if req.ConversationHistory != nil && len(req.ConversationHistory.Messages) >= 2 {
		if records, ok := itemsFromText(req.ConversationHistory.Messages[1].Content); ok {
			return records, "conversation_history", nil
		}
	}
	if req.SessionAttributes[AttrCostProcessed] == "true" {
		if records, ok := itemsFromText(req.SessionAttributes[AttrCostData]); ok {
			return records, "session_attributes", nil
		}
	}
	return nil, "", fault.New(fault.KindClientParameter,
		"비용 조회 결과를 찾을 수 없습니다. 먼저 비용을 조회한 뒤 리포트를 요청해주세요.")
}

// itemsFromText accepts either the cost payload itself or a full action
// envelope wrapping it, in any of the tolerant JSON encodings.
func itemsFromText(text string) ([]map[string]any, bool) {
	var decoded map[string]any
	if err := jsonutil.DecodeWithFallback(text, &decoded); err != nil {
		return nil, false
	}

	// Unwrap an action envelope down to its JSON body.
	if response, ok := decoded["response"].(map[string]any); ok {
		if responseBody, ok := response["responseBody"].(map[string]any); ok {
			if jsonBody, ok := responseBody["application/json"].(map[string]any); ok {
				if body, ok := jsonBody["body"].(string); ok {
					inner := map[string]any{}
					if err := jsonutil.DecodeWithFallback(body, &inner); err == nil {
						decoded = inner
					}
				}
			}
		}
	}

	for _, key := range []string{"cost_items", "data", "accounts"} {
		if list, ok := decoded[key].([]any); ok {
			return toRecordList(list)
		}
	}
	return nil, false
}

func toRecordList(list []any) ([]map[string]any, bool) {
	records := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		record, ok := entry.(map[string]any)
		if !ok {
			return nil, false
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, false
	}
	return records, true
}
