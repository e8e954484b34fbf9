package api

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/cognipilot/dendrite/internal/discovery"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.registry.Snapshot()
	out := make([]DeviceJSON, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceJSON(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.registry.Delete(id) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListInterfaces(w http.ResponseWriter, r *http.Request) {
	ifaces, err := s.netif.Interfaces()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]InterfaceJSON, 0, len(ifaces))
	for _, i := range ifaces {
		var ip string
		if i.IPv4 != nil {
			ip = i.IPv4.String()
		}
		out = append(out, InterfaceJSON{Name: i.Name, IPv4: ip, PrefixLen: i.PrefixLen, Up: i.Up, LinkUp: i.LinkUp})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetSubnet(w http.ResponseWriter, r *http.Request) {
	var req SubnetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	ip := net.ParseIP(req.Subnet)
	if ip == nil || req.PrefixLen <= 0 || req.PrefixLen > 32 {
		writeError(w, http.StatusBadRequest, "invalid subnet")
		return
	}
	subnet := &net.IPNet{IP: ip.Mask(net.CIDRMask(req.PrefixLen, 32)), Mask: net.CIDRMask(req.PrefixLen, 32)}
	s.engine.SetSubnet(req.Interface, subnet)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.engine.Scan(r.Context()); err != nil && err != discovery.ErrAlreadyRunning {
			s.logger.Warn("scan failed", "error", err)
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGetHeartbeat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HeartbeatJSON{
		Enabled:      s.heartbeat.Enabled(),
		IntervalSecs: int(s.heartbeat.Interval().Seconds()),
	})
}

func (s *Server) handleSetHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.heartbeat.SetEnabled(req.Enabled)
	w.WriteHeader(http.StatusNoContent)
}
