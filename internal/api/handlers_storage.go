package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Tickarr/internal/logger"
)

// maxStorageKeyLength bounds keys accepted through the API.
const maxStorageKeyLength = 200

// maxTTLSeconds is the longest ttl that still fits in a time.Duration.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

type putStorageRequest struct {
	Value      json.RawMessage `json:"value" binding:"required"`
	TTLSeconds int64           `json:"ttl_seconds"`
}

type importStorageRequest struct {
	Data      map[string]json.RawMessage `json:"data" binding:"required"`
	Overwrite bool                       `json:"overwrite"`
}

func storageKey(c *gin.Context) (string, error) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		return "", errors.New("key is required")
	}
	if len(key) > maxStorageKeyLength {
		return "", errors.New("key is too long")
	}
	return key, nil
}

func (s *RESTServer) listStorage(c *gin.Context) {
	keys, err := s.store.Keys()
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"prefix": s.store.Prefix(),
		"keys":   keys,
		"size":   len(keys),
	})
}

// getStorageValue returns the stored JSON. With unwrap=true a value written
// with a ttl is returned without its expiry wrapper.
func (s *RESTServer) getStorageValue(c *gin.Context) {
	key, err := storageKey(c)
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}

	var value json.RawMessage
	if c.Query("unwrap") == "true" {
		err = s.store.GetWithExpiry(key, &value)
	} else {
		err = s.store.Get(key, &value)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

func (s *RESTServer) putStorageValue(c *gin.Context) {
	key, err := storageKey(c)
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}

	var req putStorageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	if req.TTLSeconds < 0 {
		respondBadRequest(c, errors.New("ttl_seconds must not be negative"), true)
		return
	}
	if req.TTLSeconds > maxTTLSeconds {
		respondBadRequest(c, fmt.Errorf("ttl_seconds must be at most %d", maxTTLSeconds), true)
		return
	}

	if req.TTLSeconds > 0 {
		err = s.store.SetWithExpiry(key, req.Value, time.Duration(req.TTLSeconds)*time.Second)
	} else {
		err = s.store.Set(key, req.Value)
	}
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}

func (s *RESTServer) deleteStorageValue(c *gin.Context) {
	key, err := storageKey(c)
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}
	if err := s.store.Remove(key); err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *RESTServer) clearStorage(c *gin.Context) {
	if err := s.store.Clear(); err != nil {
		respondDatabaseError(c, err)
		return
	}
	logger.Infof("Cleared key-value store (prefix %s)", s.store.Prefix())
	c.Status(http.StatusNoContent)
}

func (s *RESTServer) exportStorage(c *gin.Context) {
	data, err := s.store.Export()
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=tickarr_storage.json")
	c.JSON(http.StatusOK, gin.H{
		"exported_at": time.Now().UTC(),
		"count":       len(data),
		"data":        data,
	})
}

func (s *RESTServer) importStorage(c *gin.Context) {
	var req importStorageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	for k := range req.Data {
		if strings.TrimSpace(k) == "" || len(k) > maxStorageKeyLength {
			respondBadRequest(c, errors.New("import contains an invalid key"), true)
			return
		}
	}

	written, err := s.store.Import(req.Data, req.Overwrite)
	if err != nil {
		logger.Errorf("Storage import stopped after %d keys: %v", written, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Import failed", "imported": written})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"imported": written,
		"skipped":  len(req.Data) - written,
	})
}
