package geo

import (
	"encoding/json"
	"log"
	"net/http"
)

type cityRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type cityResponse struct {
	City string `json:"city"`
}

// Handler serves POST /api/city: {"lat": .., "lng": ..} -> {"city": ".."}.
func (r *Resolver) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body cityRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.Lat < -90 || body.Lat > 90 || body.Lng < -180 || body.Lng > 180 {
			http.Error(w, "coordinates out of range", http.StatusBadRequest)
			return
		}

		city, err := r.ResolveCity(req.Context(), body.Lat, body.Lng)
		if err != nil {
			log.Printf("[geo] resolve %.4f,%.4f failed: %v", body.Lat, body.Lng, err)
			http.Error(w, "could not determine city from coordinates", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cityResponse{City: city})
	}
}
