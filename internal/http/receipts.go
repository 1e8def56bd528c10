package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// POST /v1/receipts/scan
//
// Multipart field "file". The result only pre-fills a transaction form,
// nothing is stored.
func (s *Server) scanReceipt(c *gin.Context) {
	limit := s.cfg.MaxUploadMB * 1024 * 1024
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1024*1024)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(413, gin.H{"success": false, "error": "file too large"})
			return
		}
		badRequest(c, "no file provided")
		return
	}
	defer file.Close()
	if header.Size > limit {
		c.JSON(413, gin.H{"success": false, "error": "file too large"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, "failed to read file")
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	receipt, err := s.scanner.Scan(ctx, data, mimeType)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, receipt)
}
