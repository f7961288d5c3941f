package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient vraća HTTP klijent sa podešenim timeout-om za pozive ka spoljnim servisima.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
	}
}
