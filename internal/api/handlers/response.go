package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/JulianoCristian/iotedge/internal/workload"
)

const contentTypeJSON = "application/json; charset=utf-8"

// RespondJSON sends v as JSON with an explicit Content-Length
func RespondJSON(c *gin.Context, statusCode int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("failed to encode response")
		statusCode = http.StatusInternalServerError
		body, _ = json.Marshal(workload.ErrorResponse{Message: "An IO error occurred"})
	}
	RespondData(c, statusCode, contentTypeJSON, body)
}

// RespondError sends an error body
func RespondError(c *gin.Context, statusCode int, message string) {
	RespondJSON(c, statusCode, workload.ErrorResponse{Message: message})
}

// RespondData sends a raw body with an explicit Content-Length
func RespondData(c *gin.Context, statusCode int, contentType string, body []byte) {
	c.Header("Content-Length", strconv.Itoa(len(body)))
	c.Data(statusCode, contentType, body)
}
