package httpapi

import (
	"encoding/json"
	"net/http"
)

// getInfoResponse is the entitlement payload clients poll at startup.
// This server has no purchase/entitlement backend of its own, so every
// device is reported as free-to-play and always allowed.
type getInfoResponse struct {
	AppID      string `json:"appId"`
	DeviceID   string `json:"deviceId"`
	Play       int    `json:"play"`
	Purchase   int    `json:"purchase"`
	Premium    bool   `json:"premium"`
	Trial      bool   `json:"trial"`
	CanPlay    bool   `json:"canPlay"`
}

func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	appID := r.URL.Query().Get("appId")
	deviceID := r.URL.Query().Get("deviceId")
	if appID == "" || deviceID == "" {
		http.Error(w, "appId and deviceId are required", http.StatusBadRequest)
		return
	}

	resp := getInfoResponse{
		AppID:    appID,
		DeviceID: deviceID,
		CanPlay:  true,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type metricsResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	// action/events/token are accepted and ignored: nothing in this server
	// consumes client-reported metrics events beyond acknowledging receipt.
	r.ParseForm()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metricsResponse{Status: "success"})
}

// debugDevice is the JSON shape of one registry entry in the operator
// debug snapshot. This endpoint and its shape are an addition beyond the
// original wire protocol, for the TUI monitor in cmd/registry-tui.
type debugDevice struct {
	DeviceID       string `json:"deviceId"`
	DeviceName     string `json:"deviceName"`
	DeviceType     string `json:"deviceType"`
	SlotID         int16  `json:"slotId"`
	CurrentClients int16  `json:"currentClients"`
	MaxClients     int16  `json:"maxClients"`
	Host           string `json:"host,omitempty"`
	Port           int32  `json:"port,omitempty"`
}

func (s *Server) handleDebugRegistry(w http.ResponseWriter, r *http.Request) {
	all := s.reg.ListFiltered(true) // game view: everyone
	out := make([]debugDevice, 0, len(all))
	for _, info := range all {
		d := debugDevice{
			SlotID:         info.SlotID,
			CurrentClients: info.CurrentClients,
			MaxClients:     info.MaxClients,
		}
		if info.Device != nil {
			d.DeviceID = info.Device.ID
			d.DeviceName = info.Device.Name
			d.DeviceType = info.Device.Type.String()
		}
		if info.Address != nil {
			d.Host = info.Address.Host
			d.Port = info.Address.Port
		}
		out = append(out, d)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
