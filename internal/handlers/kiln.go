package handlers

import (
	"context"
	"errors"
	"net/http"

	"kiln_controller/internal/engine"
	"kiln_controller/internal/models"
	"kiln_controller/internal/repository"
	"kiln_controller/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK       = "ok"
	statusAccepted = "accepted"

	errGetState        = "failed to load state"
	errCommandFailed   = "command failed"
	errInvalidBodyPref = "invalid body: "
	errLoadAmbiguous   = "provide exactly one of name or program"
)

// logAndJSONError logs err under logKey and writes userMsg with httpCode.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// writeServiceError maps service and engine errors to HTTP statuses.
func (h *Handler) writeServiceError(c *gin.Context, logKey string, err error) {
	var pe *engine.ProgramError
	switch {
	case errors.As(err, &pe):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": pe.Reason, "code": pe.Code.String()})
	case errors.Is(err, service.ErrCommandNotApplicable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrProgramNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errCommandFailed, logKey, err)
	}
}

// respondAccepted reports a queued command with the current snapshot (best-effort).
// The snapshot reflects the state before the command is applied on the next tick.
func (h *Handler) respondAccepted(c *gin.Context, command string) {
	resp := gin.H{"status": statusAccepted, "command": command}
	if st, err := h.services.Monitoring.GetState(c.Request.Context()); err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusAccepted, resp)
}

func (h *Handler) runCommand(c *gin.Context, name string, fn func(context.Context) error) {
	if err := fn(c.Request.Context()); err != nil {
		h.writeServiceError(c, "kiln_"+name+"_failed", err)
		return
	}
	if h.log != nil {
		h.log.Infow("kiln_command_accepted",
			"command", name,
			"operator_id", c.GetInt(operatorCtxKey),
			"operator", c.GetString(operatorNameCtxKey),
		)
	}
	h.respondAccepted(c, name)
}

// LoadRequest selects a stored program by name or carries one inline.
type LoadRequest struct {
	Name    string                `json:"name,omitempty" example:"bisque"`
	Program *models.FiringProgram `json:"program,omitempty"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Load program
// @Description  Queues a stored program (by name) or an inline program. Only accepted while no run is active.
// @Tags         kiln
// @Accept       json
// @Produce      json
// @Param        body  body      LoadRequest  true  "Program selector"
// @Success      202   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/v1/kiln/load [post]
// @Security     BearerAuth
func (h *Handler) loadProgram(c *gin.Context) {
	var req LoadRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if (req.Name == "") == (req.Program == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errLoadAmbiguous})
		return
	}

	h.runCommand(c, "load", func(ctx context.Context) error {
		if req.Program != nil {
			return h.services.Kiln.LoadProgram(ctx, *req.Program)
		}
		return h.services.Kiln.Load(ctx, req.Name)
	})
}

// @Summary      Start run
// @Tags         kiln
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/kiln/start [post]
// @Security     BearerAuth
func (h *Handler) startRun(c *gin.Context) { h.runCommand(c, "start", h.services.Kiln.Start) }

// @Summary      Pause run
// @Tags         kiln
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/kiln/pause [post]
// @Security     BearerAuth
func (h *Handler) pauseRun(c *gin.Context) { h.runCommand(c, "pause", h.services.Kiln.Pause) }

// @Summary      Resume run
// @Tags         kiln
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/kiln/resume [post]
// @Security     BearerAuth
func (h *Handler) resumeRun(c *gin.Context) { h.runCommand(c, "resume", h.services.Kiln.Resume) }

// @Summary      Abort run
// @Tags         kiln
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/kiln/abort [post]
// @Security     BearerAuth
func (h *Handler) abortRun(c *gin.Context) { h.runCommand(c, "abort", h.services.Kiln.Abort) }

// @Summary      Clean up finished run
// @Tags         kiln
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/kiln/cleanup [post]
// @Security     BearerAuth
func (h *Handler) cleanupRun(c *gin.Context) { h.runCommand(c, "cleanup", h.services.Kiln.Cleanup) }

// @Summary      Acknowledge alarm
// @Tags         kiln
// @Produce      json
// @Success      202  {object}  map[string]interface{}
// @Router       /api/v1/kiln/alarm/ack [post]
// @Security     BearerAuth
func (h *Handler) ackAlarm(c *gin.Context) {
	h.runCommand(c, "alarm_ack", h.services.Kiln.AcknowledgeAlarm)
}

// @Summary      Get run state
// @Tags         kiln
// @Produce      json
// @Success      200  {object}  models.RunSnapshot
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/kiln/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "kiln_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
