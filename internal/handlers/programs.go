package handlers

import (
	"net/http"

	"kiln_controller/internal/models"

	"github.com/gin-gonic/gin"
)

// @Summary      List programs
// @Tags         programs
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, programs"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/programs [get]
// @Security     BearerAuth
func (h *Handler) listPrograms(c *gin.Context) {
	programs, err := h.services.Programs.List(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to list programs", "programs_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(programs),
		"programs": programs,
	})
}

// @Summary      Get program
// @Tags         programs
// @Produce      json
// @Param        name  path      string  true  "Program name"
// @Success      200   {object}  models.FiringProgram
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/programs/{name} [get]
// @Security     BearerAuth
func (h *Handler) getProgram(c *gin.Context) {
	p, err := h.services.Programs.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.writeServiceError(c, "programs_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Save program
// @Description  Creates or replaces a program. Validated with the same rules as a run load.
// @Tags         programs
// @Accept       json
// @Produce      json
// @Param        body  body      models.FiringProgram  true  "Program"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/v1/programs [post]
// @Security     BearerAuth
func (h *Handler) saveProgram(c *gin.Context) {
	var p models.FiringProgram
	if ok := h.bindJSONOrBadRequest(c, &p); !ok {
		return
	}
	if err := h.services.Programs.Save(c.Request.Context(), p); err != nil {
		h.writeServiceError(c, "programs_save_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "name": p.Name})
}

// @Summary      Delete program
// @Tags         programs
// @Produce      json
// @Param        name  path      string  true  "Program name"
// @Success      200   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/programs/{name} [delete]
// @Security     BearerAuth
func (h *Handler) deleteProgram(c *gin.Context) {
	name := c.Param("name")
	if err := h.services.Programs.Delete(c.Request.Context(), name); err != nil {
		h.writeServiceError(c, "programs_delete_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "name": name})
}
