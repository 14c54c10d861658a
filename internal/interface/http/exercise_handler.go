package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/fittrack/internal/domain/exercise"
)

// ListExercises returns the catalog; signed-in callers also see their own exercises.
func (h *Handler) ListExercises(c *gin.Context) {
	var viewerID int64
	if principal, ok := principalFrom(c); ok {
		viewerID = principal.ID
	}
	filter := exercise.Filter{
		Category:    c.Query("category"),
		MuscleGroup: c.Query("muscleGroup"),
	}
	items, err := h.exerciseSvc.List(c.Request.Context(), viewerID, filter)
	if err != nil {
		abortWithError(c, fromExerciseError(err))
		return
	}
	if items == nil {
		items = []exercise.Exercise{}
	}
	respond(c, http.StatusOK, "Exercises retrieved successfully", gin.H{
		"exercises":     items,
		"authenticated": viewerID != 0,
	})
}

// CreateExercise adds a custom exercise owned by the caller.
func (h *Handler) CreateExercise(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "NO_TOKEN", "Access denied. No token provided.", nil))
		return
	}
	var req exercise.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, invalidBody(err))
		return
	}
	item, err := h.exerciseSvc.Create(c.Request.Context(), principal.ID, req)
	if err != nil {
		abortWithError(c, fromExerciseError(err))
		return
	}
	respond(c, http.StatusCreated, "Exercise created successfully", gin.H{"exercise": item})
}
