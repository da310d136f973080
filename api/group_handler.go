package api

import (
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/pipelineapi/representer"
	"github.com/GoCodeAlone/pipelineapi/service"
)

// GroupHandler lists pipeline groups with their pipelines embedded.
type GroupHandler struct {
	service *service.PipelineConfigService
	codec   *representer.Codec
	links   linkResolver
	logger  *slog.Logger
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(svc *service.PipelineConfigService, codec *representer.Codec, links linkResolver, logger *slog.Logger) *GroupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupHandler{service: svc, codec: codec, links: links, logger: logger}
}

// List handles GET /api/admin/pipeline_groups.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups(r.Context())
	if err != nil {
		h.logger.Error("list pipeline groups failed", "error", err)
		WriteMessage(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	links := h.links(r)
	items := make([]*representer.Document, 0, len(groups))
	for _, g := range groups {
		doc, err := h.codec.EncodeGroup(g, links)
		if err != nil {
			h.logger.Error("encode pipeline group failed", "group", g.Name, "error", err)
			WriteMessage(w, http.StatusInternalServerError, "Internal server error.")
			return
		}
		items = append(items, doc)
	}
	doc := representer.NewDocument().
		Set("_links", representer.Links("self", links.PipelineGroupsURL(), "doc", representer.PipelineGroupsDoc)).
		Set("_embedded", representer.NewDocument().Set("groups", items))
	WriteHAL(w, http.StatusOK, "", doc)
}
