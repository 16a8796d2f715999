package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db          *gorm.DB
	llmProvider string
}

func NewHealthHandler(db *gorm.DB, llmProvider string) *HealthHandler {
	return &HealthHandler{db: db, llmProvider: llmProvider}
}

func (hh *HealthHandler) Check(c *gin.Context) {
	dbStatus := "ok"
	status := http.StatusOK
	if sqlDB, err := hh.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		dbStatus = "error"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"api":      "ok",
		"database": dbStatus,
		"llm":      hh.llmProvider,
	})
}
