package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/collabhub/realtime/domain"
	"github.com/collabhub/realtime/http/middleware"
	"github.com/collabhub/realtime/presence"
	"go.uber.org/zap"
)

type Presence struct {
	tracker *presence.Tracker
	prefs   domain.PreferenceReader
	reader  domain.PresenceReader
	log     *zap.Logger
}

func NewPresence(
	tracker *presence.Tracker,
	prefs domain.PreferenceReader,
	reader domain.PresenceReader,
	log *zap.Logger,
) *Presence {
	return &Presence{
		tracker: tracker,
		prefs:   prefs,
		reader:  reader,
		log:     log,
	}
}

type presenceResponse struct {
	UserID      uint64                `json:"userId"`
	Status      domain.PresenceStatus `json:"status"`
	AwayMessage string                `json:"awayMessage,omitempty"`
	BreakUntil  *time.Time            `json:"breakUntil,omitempty"`
}

// Get reports another user's effective status: the stored state with
// the working-hours overlay applied.
func (h *Presence) Get(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	state, ok := h.tracker.State(userID)
	if !ok {
		// Not on this node; fall back to the shared mirror.
		mirrored, err := h.reader.Get(c.Request.Context(), userID)
		if err != nil {
			abortWithInternalError(c, h.log, err)
			return
		}

		state = *mirrored
	}

	prefs, err := h.prefs.Preferences(c.Request.Context(), userID)
	if err != nil {
		abortWithInternalError(c, h.log, err)
		return
	}

	resp := presenceResponse{
		UserID:      userID,
		Status:      domain.EffectiveStatus(state, prefs, time.Now()),
		AwayMessage: state.AwayMessage,
	}

	if !state.BreakUntil.IsZero() {
		resp.BreakUntil = &state.BreakUntil
	}

	c.JSON(http.StatusOK, resp)
}

type setAFKRequest struct {
	AwayMessage string `json:"awayMessage"`
}

func (h *Presence) SetAFK(c *gin.Context) {
	var req setAFKRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserIDFromContext(c)

	state, err := h.tracker.Apply(userID, domain.PresenceSignal{
		Kind:        domain.SignalSetAFK,
		At:          time.Now(),
		AwayMessage: req.AwayMessage,
	})
	if err != nil && !errors.Is(err, domain.ErrStaleUpdate) {
		abortWithInternalError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// ClearAFK is the only way out of afk: activity alone never clears it.
func (h *Presence) ClearAFK(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)

	state, err := h.tracker.Apply(userID, domain.PresenceSignal{
		Kind: domain.SignalClearAFK,
		At:   time.Now(),
	})
	if err != nil && !errors.Is(err, domain.ErrStaleUpdate) {
		abortWithInternalError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

type startBreakRequest struct {
	DurationMinutes int `json:"durationMinutes" binding:"required,min=1"`
}

func (h *Presence) StartBreak(c *gin.Context) {
	var req startBreakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	userID := middleware.GetUserIDFromContext(c)

	state, err := h.tracker.Apply(userID, domain.PresenceSignal{
		Kind:          domain.SignalStartBreak,
		At:            time.Now(),
		BreakDuration: time.Duration(req.DurationMinutes) * time.Minute,
	})
	if err != nil && !errors.Is(err, domain.ErrStaleUpdate) {
		abortWithInternalError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *Presence) EndBreak(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)

	state, err := h.tracker.Apply(userID, domain.PresenceSignal{
		Kind: domain.SignalEndBreak,
		At:   time.Now(),
	})
	if err != nil && !errors.Is(err, domain.ErrStaleUpdate) {
		abortWithInternalError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, state)
}
