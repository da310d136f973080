package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/pipelineapi/cache"
	"github.com/GoCodeAlone/pipelineapi/config"
	"github.com/GoCodeAlone/pipelineapi/observability"
	"github.com/GoCodeAlone/pipelineapi/representer"
	"github.com/GoCodeAlone/pipelineapi/service"
	"github.com/GoCodeAlone/pipelineapi/store"
)

const (
	staleMessageFormat = "Someone has modified the configuration for pipeline '%s'. Please update your copy of the config with the changes."
	renameMessage      = "Renaming of pipeline is not supported by this API."

	maxBodyBytes = 1 << 20
)

// Conditional request results, as recorded in metrics.
const (
	conditionalNotModified = "not_modified"
	conditionalServed      = "served"
	conditionalMatched     = "matched"
	conditionalStale       = "precondition_failed"
)

// PipelineHandler serves a single pipeline's configuration with ETag
// validation on reads and optimistic concurrency on writes.
type PipelineHandler struct {
	service *service.PipelineConfigService
	codec   *representer.Codec
	etags   *cache.ETags
	links   linkResolver
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(svc *service.PipelineConfigService, codec *representer.Codec, etags *cache.ETags, links linkResolver, metrics *observability.Metrics, logger *slog.Logger) *PipelineHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineHandler{service: svc, codec: codec, etags: etags, links: links, metrics: metrics, logger: logger}
}

// Fingerprint hashes the encoded pipeline without its links, so the hash
// does not depend on the host the pipeline was requested through.
func Fingerprint(doc *representer.Document) (string, error) {
	data, err := doc.Without("_links").Canonical()
	if err != nil {
		return "", err
	}
	return cache.Fingerprint(data), nil
}

func (h *PipelineHandler) computeFrom(p *config.PipelineConfig) cache.ComputeFunc {
	return func(context.Context) (string, error) {
		doc, err := h.codec.Encode(p)
		if err != nil {
			return "", err
		}
		return Fingerprint(doc)
	}
}

// Show handles GET /api/admin/pipelines/{name}.
func (h *PipelineHandler) Show(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, ok := h.load(w, r, name)
	if !ok {
		return
	}

	hash, err := h.etags.GetOrCompute(r.Context(), name, h.computeFrom(p))
	if err != nil {
		h.internalError(w, "etag lookup failed", name, err)
		return
	}
	etag := cache.HeaderValue(hash)

	if inm := r.Header.Get("If-None-Match"); inm != "" && cache.Matches(inm, etag) {
		h.metrics.RecordConditional(r.Method, conditionalNotModified)
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.metrics.RecordConditional(r.Method, conditionalServed)

	doc, err := h.codec.EncodeWithLinks(p, h.links(r))
	if err != nil {
		h.internalError(w, "encode pipeline failed", name, err)
		return
	}
	WriteHAL(w, http.StatusOK, etag, doc)
}

// reply is the response decided while the ETag entry is locked.
type reply struct {
	status  int
	message string
	etag    string
	doc     *representer.Document
}

func (rp reply) write(w http.ResponseWriter) {
	switch {
	case rp.status == http.StatusOK:
		WriteHAL(w, rp.status, rp.etag, rp.doc)
	case rp.doc != nil:
		WriteMessageWithData(w, rp.status, rp.message, rp.doc)
	default:
		WriteMessage(w, rp.status, rp.message)
	}
}

// Update handles PUT /api/admin/pipelines/{name}. The body is either
// {"pipeline": {...}} or the pipeline document itself, and If-Match must
// carry the ETag of the current version.
func (h *PipelineHandler) Update(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	current, ok := h.load(w, r, name)
	if !ok {
		return
	}
	actor := ActorFromContext(r.Context())

	var out reply
	err := h.etags.Transact(r.Context(), name, h.computeFrom(current), func(hash string) (string, error) {
		ifMatch := r.Header.Get("If-Match")
		if !cache.MatchesStrong(ifMatch, cache.HeaderValue(hash)) {
			h.metrics.RecordConditional(r.Method, conditionalStale)
			out = reply{status: http.StatusPreconditionFailed, message: fmt.Sprintf(staleMessageFormat, name)}
			return "", nil
		}
		h.metrics.RecordConditional(r.Method, conditionalMatched)

		var next string
		var err error
		out, next, err = h.update(r, name, actor)
		return next, err
	})
	if err != nil {
		h.internalError(w, "pipeline update failed", name, err)
		return
	}
	out.write(w)
}

// update runs with the ETag entry locked and If-Match already verified.
// A non-empty hash is returned only when the pipeline was saved.
func (h *PipelineHandler) update(r *http.Request, name string, actor service.Actor) (reply, string, error) {
	body, err := representer.ParseDocument(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return reply{status: http.StatusUnprocessableEntity, message: "Your request could not be processed. " + err.Error()}, "", nil
	}
	doc := body
	if v, ok := body.Get("pipeline"); ok {
		inner, isDoc := v.(*representer.Document)
		if !isDoc {
			return reply{status: http.StatusUnprocessableEntity, message: "Your request could not be processed. Expected 'pipeline' to be an object."}, "", nil
		}
		doc = inner
	}

	submitted, _ := doc.Get("name")
	submittedName, _ := submitted.(string)
	if !config.NewName(submittedName).Equal(config.NewName(name)) {
		return reply{status: http.StatusNotAcceptable, message: renameMessage}, "", nil
	}

	p, err := h.codec.Decode(doc)
	if err != nil {
		var unprocessable *representer.UnprocessableEntityError
		if errors.As(err, &unprocessable) {
			return reply{status: http.StatusUnprocessableEntity, message: "Your request could not be processed. " + unprocessable.Message}, "", nil
		}
		return reply{}, "", err
	}

	var result service.OperationResult
	h.service.UpdatePipelineConfig(r.Context(), actor, p, &result)
	if !result.IsSuccessful() {
		data, err := h.codec.EncodeWithLinks(p, h.links(r))
		if err != nil {
			return reply{}, "", err
		}
		return reply{status: result.HTTPCode(), message: result.Message(), doc: data}, "", nil
	}

	saved, err := h.service.GetPipelineConfig(r.Context(), name)
	if err != nil {
		return reply{}, "", err
	}
	encoded, err := h.codec.EncodeWithLinks(saved, h.links(r))
	if err != nil {
		return reply{}, "", err
	}
	hash, err := Fingerprint(encoded)
	if err != nil {
		return reply{}, "", err
	}
	return reply{status: http.StatusOK, etag: cache.HeaderValue(hash), doc: encoded}, hash, nil
}

// History handles GET /api/admin/pipelines/{name}/history.
func (h *PipelineHandler) History(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	revs, ok, err := h.service.History(r.Context(), name)
	switch {
	case !ok:
		WriteMessage(w, http.StatusNotImplemented, "Pipeline history is not kept by this server.")
		return
	case errors.Is(err, store.ErrNotFound):
		WriteMessage(w, http.StatusNotFound, service.NotFoundMessage)
		return
	case err != nil:
		h.internalError(w, "pipeline history failed", name, err)
		return
	}

	items := make([]any, 0, len(revs))
	for _, rev := range revs {
		items = append(items, representer.NewDocument().
			Set("version", rev.Version).
			Set("changed_by", rev.ChangedBy).
			Set("changed_at", rev.ChangedAt))
	}
	links := h.links(r)
	doc := representer.NewDocument().
		Set("_links", representer.Links("self", links.PipelineURL(name)+"/history", "pipeline", links.PipelineURL(name))).
		Set("name", name).
		Set("revisions", items)
	WriteHAL(w, http.StatusOK, "", doc)
}

func (h *PipelineHandler) load(w http.ResponseWriter, r *http.Request, name string) (*config.PipelineConfig, bool) {
	p, err := h.service.GetPipelineConfig(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		WriteMessage(w, http.StatusNotFound, service.NotFoundMessage)
		return nil, false
	}
	if err != nil {
		h.internalError(w, "load pipeline failed", name, err)
		return nil, false
	}
	return p, true
}

func (h *PipelineHandler) internalError(w http.ResponseWriter, msg, name string, err error) {
	h.logger.Error(msg, "pipeline", name, "error", err)
	WriteMessage(w, http.StatusInternalServerError, "Internal server error.")
}
