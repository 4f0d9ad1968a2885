package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/audiolink/wavebridge/internal/notify"
)

// NoticeSource exposes retained user notices. Satisfied by
// *notify.Center.
type NoticeSource interface {
	Recent() []notify.Notice
	Indicator() bool
}

// NoticesHandler exposes the notice history and live indicator.
type NoticesHandler struct {
	source NoticeSource
}

// NewNoticesHandler creates the notices handler.
func NewNoticesHandler(source NoticeSource) *NoticesHandler {
	return &NoticesHandler{source: source}
}

// NoticesOutput wraps the notices response.
type NoticesOutput struct {
	Body struct {
		Live    bool            `json:"live" doc:"Whether audio is currently live"`
		Notices []notify.Notice `json:"notices"`
	}
}

// Register registers the notices route with the API.
func (h *NoticesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getNotices",
		Method:      "GET",
		Path:        "/api/v1/notices",
		Summary:     "Recent user notices and live indicator",
		Tags:        []string{"Events"},
	}, h.GetNotices)
}

// GetNotices returns the retained notices and indicator state.
func (h *NoticesHandler) GetNotices(ctx context.Context, _ *struct{}) (*NoticesOutput, error) {
	out := &NoticesOutput{}
	out.Body.Live = h.source.Indicator()
	out.Body.Notices = h.source.Recent()
	if out.Body.Notices == nil {
		out.Body.Notices = []notify.Notice{}
	}
	return out, nil
}
