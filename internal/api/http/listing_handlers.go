package httpapi

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	appListing "github.com/resale-hub/claim-engine/internal/application/listing"
	"github.com/resale-hub/claim-engine/internal/domain/listing"
)

type createListingRequest struct {
	Title         string          `json:"title" validate:"required,max=200"`
	PriceMode     string          `json:"priceMode" validate:"required,oneof=msl bidding"`
	MinePrice     decimal.Decimal `json:"minePrice"`
	StealPrice    decimal.Decimal `json:"stealPrice"`
	LockPrice     decimal.Decimal `json:"lockPrice"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	MinIncrement  decimal.Decimal `json:"minIncrement"`
	EndDeadline   time.Time       `json:"endDeadline" validate:"required"`
}

func (s *Server) createListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := s.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	actor := actorFromContext(r.Context())
	l, err := s.listingSvc.Create(r.Context(), appListing.CreateInput{
		SellerID:      actor.UserID,
		Title:         req.Title,
		PriceMode:     listing.PriceMode(req.PriceMode),
		MinePrice:     req.MinePrice,
		StealPrice:    req.StealPrice,
		LockPrice:     req.LockPrice,
		StartingPrice: req.StartingPrice,
		MinIncrement:  req.MinIncrement,
		EndDeadline:   req.EndDeadline,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, l)
}

func (s *Server) getListing(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid listingId")
		return
	}
	l, err := s.listingSvc.Get(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if l == nil {
		respondError(w, http.StatusNotFound, "LISTING_MISSING", "listing not found")
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid listingId")
		return
	}
	items, err := s.listingSvc.ListActivity(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"activity": items})
}

func (s *Server) listBids(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid listingId")
		return
	}
	items, err := s.biddingSvc.ListBids(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"bids": items})
}

func (s *Server) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid listingId")
		return
	}
	items, err := s.listingSvc.ListPayments(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"payments": items})
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "listingId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid listingId")
		return
	}
	items, err := s.conversationSvc.ListByListing(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"conversations": items})
}

func (s *Server) listMyActivity(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 200)
	actor := actorFromContext(r.Context())
	items, err := s.listingSvc.ListUserActivity(r.Context(), actor.UserID, limit, offset)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"activity": items})
}
