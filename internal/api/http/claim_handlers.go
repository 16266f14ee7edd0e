package httpapi

import (
	"net/http"
	"strings"

	appClaim "github.com/resale-hub/claim-engine/internal/application/claim"
	"github.com/resale-hub/claim-engine/internal/domain/activity"
)

type claimRequest struct {
	Kind   string   `json:"kind" validate:"required"`
	Amount *float64 `json:"amount,omitempty"`
}

type bidRequest struct {
	Amount *float64 `json:"amount" validate:"required"`
}

func (s *Server) applyClaim(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid listingId")
		return
	}
	var req claimRequest
	if err := s.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	actor := actorFromContext(r.Context())
	res, err := s.claimSvc.Apply(r.Context(), appClaim.ActionRequest{
		ListingID: id,
		UserID:    actor.UserID,
		UserName:  actor.UserName,
		Kind:      activity.Kind(strings.ToLower(req.Kind)),
		Amount:    req.Amount,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (s *Server) submitBid(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid listingId")
		return
	}
	var req bidRequest
	if err := s.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	actor := actorFromContext(r.Context())
	b, err := s.biddingSvc.SubmitBid(r.Context(), id, actor.UserID, actor.UserName, *req.Amount)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

// paymentSubmitted is called once the served buyer has paid.
func (s *Server) paymentSubmitted(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid listingId")
		return
	}
	actor := actorFromContext(r.Context())
	rec, err := s.paymentMgr.SubmitPayment(r.Context(), id, actor.UserID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}
