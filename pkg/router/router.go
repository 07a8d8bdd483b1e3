package router

import (
	"log"
	"net/http"
	"strings"
	"time"
)

// --- ANSI color codes for the access log ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

// Router is a minimal method-aware router with single-segment and trailing
// wildcards, plus a colored access log.
type Router struct {
	mux    *http.ServeMux
	routes map[string]HandlerFunc // key = METHOD:PATH
	paths  map[string]bool
}

func New() *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
	}

	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		r.dispatch(rec, req)

		log.Printf("%s[%s]%s %s%s%s %s %s%d%s %s(%v)%s",
			colorCyan, start.Format("2006-01-02 15:04:05"), colorReset,
			methodColor(req.Method), req.Method, colorReset,
			req.URL.Path,
			statusColor(rec.status), rec.status, colorReset,
			colorBlue, time.Since(start), colorReset,
		)
	})

	return r
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	if h, ok := r.routes[req.Method+":"+req.URL.Path]; ok {
		h(w, req)
		return
	}

	// Pick the most specific wildcard match so "/runs/*/events" wins over
	// "/runs/*" regardless of registration order.
	var best string
	bestScore := -1
	for pattern := range r.paths {
		if !strings.Contains(pattern, "*") || !matchPattern(req.URL.Path, pattern) {
			continue
		}
		if _, ok := r.routes[req.Method+":"+pattern]; !ok {
			continue
		}
		if score := literalSegments(pattern); score > bestScore {
			best, bestScore = pattern, score
		}
	}
	if best != "" {
		r.routes[req.Method+":"+best](w, req)
		return
	}

	if r.paths[req.URL.Path] {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

// matchPattern matches a path against a pattern where "*" stands for one
// segment, or for the whole remainder when it is the last segment.
func matchPattern(path, pattern string) bool {
	pathSegs := strings.Split(strings.Trim(path, "/"), "/")
	patSegs := strings.Split(strings.Trim(pattern, "/"), "/")

	if patSegs[len(patSegs)-1] == "*" && len(pathSegs) >= len(patSegs)-1 {
		patSegs = patSegs[:len(patSegs)-1]
		pathSegs = pathSegs[:len(patSegs)]
	}
	if len(pathSegs) != len(patSegs) {
		return false
	}
	for i, seg := range patSegs {
		if seg != "*" && seg != pathSegs[i] {
			return false
		}
	}
	return true
}

func literalSegments(pattern string) int {
	n := 0
	for _, seg := range strings.Split(strings.Trim(pattern, "/"), "/") {
		if seg != "*" {
			n++
		}
	}
	return n
}

func (r *Router) register(method, path string, handler HandlerFunc) {
	r.routes[method+":"+path] = handler
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)  { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc) { r.register(http.MethodPost, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Start runs the HTTP server on addr, blocking until it exits.
func (r *Router) Start(addr string) error {
	log.Printf("server listening on %s%s%s", colorGreen, addr, colorReset)
	return http.ListenAndServe(addr, r.mux)
}

// --- status capture for the access log ---
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func statusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	default:
		return colorRed
	}
}

func methodColor(method string) string {
	switch method {
	case http.MethodGet:
		return colorGreen
	case http.MethodPost:
		return colorBlue
	case http.MethodDelete:
		return colorRed
	default:
		return colorCyan
	}
}
