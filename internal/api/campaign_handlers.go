package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/httputil"
	"github.com/Marvin-MM/Luco-Email-sub000/internal/service/campaign"
)

// CreateCampaign accepts a campaign definition with its full recipient
// list. The request is accepted or rejected as a whole.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}

	c, err := h.campaigns.Create(r.Context(), TenantID(r), input)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.Created(w, c)
}

// ListCampaigns returns the tenant's campaigns, newest first.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	campaigns, total, err := h.campaigns.List(r.Context(), TenantID(r), campaign.ListFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"campaigns": campaigns,
		"total":     total,
	})
}

func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), TenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// SendCampaign starts dispatch. The request returns as soon as the
// campaign is handed to the background dispatcher.
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Start(r.Context(), TenantID(r), id); err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.JSON(w, http.StatusAccepted, map[string]any{
		"id":     id,
		"status": "SENDING",
	})
}

func (h *Handlers) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Cancel(r.Context(), TenantID(r), id); err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"id":     id,
		"status": "CANCELLED",
	})
}

func (h *Handlers) CampaignProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.campaigns.Progress(r.Context(), TenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	httputil.OK(w, p)
}

// writeCampaignError maps service errors to HTTP responses.
func writeCampaignError(w http.ResponseWriter, err error) {
	var verr *campaign.ValidationError
	var qerr *campaign.QuotaError

	switch {
	case errors.As(err, &verr):
		invalid := verr.Invalid
		if len(invalid) > 10 {
			invalid = invalid[:10]
		}
		httputil.ErrorWithDetails(w, http.StatusBadRequest, verr.Error(),
			"invalid_recipients", invalid)
	case errors.As(err, &qerr):
		httputil.ErrorWithDetails(w, http.StatusTooManyRequests, qerr.Error(),
			"quota_exceeded", map[string]any{
				"limit":     qerr.Limit,
				"used":      qerr.Used,
				"remaining": qerr.Remaining,
				"requested": qerr.Requested,
			})
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, campaign.ErrInvalidTransition):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, campaign.ErrEmptyRecipients),
		errors.Is(err, campaign.ErrTemplateNotFound),
		errors.Is(err, campaign.ErrIdentityNotFound):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
