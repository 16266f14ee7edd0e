package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/resale-hub/claim-engine/internal/application/apperr"
	appBidding "github.com/resale-hub/claim-engine/internal/application/bidding"
	appClaim "github.com/resale-hub/claim-engine/internal/application/claim"
	appConversation "github.com/resale-hub/claim-engine/internal/application/conversation"
	appListing "github.com/resale-hub/claim-engine/internal/application/listing"
	appNotify "github.com/resale-hub/claim-engine/internal/application/notify"
	appPayment "github.com/resale-hub/claim-engine/internal/application/payment"
	"github.com/resale-hub/claim-engine/internal/application/validation"
	"github.com/resale-hub/claim-engine/internal/domain/listing"
	domainLock "github.com/resale-hub/claim-engine/internal/domain/lock"
	"github.com/resale-hub/claim-engine/internal/domain/payment"
	"github.com/resale-hub/claim-engine/internal/infrastructure/sse"
	"github.com/resale-hub/claim-engine/internal/infrastructure/ws"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	listingSvc      *appListing.Service
	claimSvc        *appClaim.Service
	biddingSvc      *appBidding.Service
	paymentMgr      *appPayment.Manager
	notifySvc       *appNotify.Service
	conversationSvc *appConversation.Service
	sseHub          *sse.Hub
	wsHub           *ws.Hub
	validate        *validator.Validate
	logger          zerolog.Logger
}

func NewServer(
	listingSvc *appListing.Service,
	claimSvc *appClaim.Service,
	biddingSvc *appBidding.Service,
	paymentMgr *appPayment.Manager,
	notifySvc *appNotify.Service,
	conversationSvc *appConversation.Service,
	sseHub *sse.Hub,
	wsHub *ws.Hub,
	logger zerolog.Logger,
) *Server {
	return &Server{
		listingSvc:      listingSvc,
		claimSvc:        claimSvc,
		biddingSvc:      biddingSvc,
		paymentMgr:      paymentMgr,
		notifySvc:       notifySvc,
		conversationSvc: conversationSvc,
		sseHub:          sseHub,
		wsHub:           wsHub,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		logger:          logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", d).
			Msg("request")
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/listings", func(r chi.Router) {
			// Streams are long-lived and stay outside the request timeout.
			r.Get("/{listingId}/ws", s.listingFeed)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(30 * time.Second))
				r.With(s.requireActor).Post("/", s.createListing)
				r.Get("/{listingId}", s.getListing)
				r.Get("/{listingId}/activity", s.listActivity)
				r.Get("/{listingId}/bids", s.listBids)
				r.Get("/{listingId}/payments", s.listPayments)
				r.Get("/{listingId}/conversations", s.listConversations)

				r.Group(func(r chi.Router) {
					r.Use(s.requireActor)
					r.Post("/{listingId}/claims", s.applyClaim)
					r.Post("/{listingId}/bids", s.submitBid)
					r.Post("/{listingId}/payments/submitted", s.paymentSubmitted)
				})
			})
		})

		r.With(s.requireActor).Get("/notifications/sse", s.sseEndpoint)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Use(s.requireActor)
			r.Get("/notifications", s.listNotifications)
			r.Get("/me/activity", s.listMyActivity)
		})
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondServiceError maps errors returned by the application services.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		status := http.StatusUnprocessableEntity
		switch verr.Reason {
		case validation.ReasonListingMissing:
			status = http.StatusNotFound
		case validation.ReasonNotAuthenticated:
			status = http.StatusUnauthorized
		}
		respondError(w, status, string(verr.Reason), verr.Message)
		return
	}
	var terr *apperr.TransientIOError
	switch {
	case errors.As(err, &terr):
		hlog.FromRequest(r).Error().Err(err).Msg("storage failure")
		respondError(w, http.StatusServiceUnavailable, "TRANSIENT_IO", "temporarily unavailable, try again")
	case errors.Is(err, listing.ErrInvalidListing):
		respondError(w, http.StatusUnprocessableEntity, "INVALID_LISTING", err.Error())
	case errors.Is(err, listing.ErrVersionConflict),
		errors.Is(err, listing.ErrInvalidTransition),
		errors.Is(err, domainLock.ErrLockHeld),
		errors.Is(err, payment.ErrNoPendingPayment),
		errors.Is(err, payment.ErrPendingExists),
		errors.Is(err, payment.ErrDuplicate):
		respondError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, payment.ErrNotServedBuyer):
		respondError(w, http.StatusForbidden, "NOT_SERVED_BUYER", err.Error())
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeValid decodes the body into v and runs its validate tags.
func (s *Server) decodeValid(r *http.Request, v interface{}) error {
	if err := decodeBody(r, v); err != nil {
		return err
	}
	return s.validate.Struct(v)
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
