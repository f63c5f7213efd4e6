package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type matchRecord struct {
	RecordID   string        `json:"record_id"`
	Similarity float64       `json:"similarity"`
	Profile    profileRecord `json:"profile"`
}

type profileRecord struct {
	Ethnicity string `json:"ethnicity"`
	SkinType  string `json:"skin_type"`
	AgeGroup  string `json:"age_group"`
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/v1/objects", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"matches": []matchRecord{
				{RecordID: "img-2041", Similarity: 0.93, Profile: profileRecord{Ethnicity: "east_asian", SkinType: "combination", AgeGroup: "25-34"}},
				{RecordID: "img-1187", Similarity: 0.88, Profile: profileRecord{Ethnicity: "south_asian", SkinType: "oily", AgeGroup: "25-34"}},
			},
		})
	})

	mux.HandleFunc("/v1/demographics/search", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"matches": []matchRecord{
				{RecordID: "img-0562", Similarity: 0.81, Profile: profileRecord{Ethnicity: "east_asian", SkinType: "combination", AgeGroup: "25-34"}},
			},
		})
	})

	logger := log.New(log.Writer(), "vectorstore-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9091",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9091")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
