package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/predatorx7/logtopus/pkg/broker"
)

type StatusResponse struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	IngestedLogs uint64 `json:"ingested_logs"`
	DroppedLogs  uint64 `json:"dropped_logs"`
	Subscribers  int    `json:"subscribers"`
}

var startTime = time.Now()

func HandleStatus(b broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := b.Stats()

		resp := StatusResponse{
			Status:       "ok",
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			IngestedLogs: stats.Ingested,
			DroppedLogs:  stats.Dropped,
			Subscribers:  stats.Subscribers,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
