package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Serves the explorer over HTTP.
//
//	GET /                  the browser page
//	GET /.status           the progress of the checker
//	GET /.states           the initial states
//	GET /.states/{fp}      a state, its enabled actions and their successors
//	GET /.export.dot       the discovered state space
//	GET /metrics           prometheus metrics
func (e *Explorer[S, A]) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", e.instrument("index", func(w http.ResponseWriter, r *http.Request) int {
		if r.URL.Path != "/" {
			return writeError(w, http.StatusNotFound, "not found")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(indexPage))
		return http.StatusOK
	}))
	mux.HandleFunc("/.status", e.instrument("status", func(w http.ResponseWriter, r *http.Request) int {
		return writeJSON(w, http.StatusOK, e.Status())
	}))
	mux.HandleFunc("/.states", e.instrument("init", func(w http.ResponseWriter, r *http.Request) int {
		return writeJSON(w, http.StatusOK, e.Init())
	}))
	mux.HandleFunc("/.states/", e.instrument("successors", func(w http.ResponseWriter, r *http.Request) int {
		fp, err := strconv.ParseUint(strings.TrimPrefix(r.URL.Path, "/.states/"), 10, 64)
		if err != nil {
			return writeError(w, http.StatusBadRequest, "invalid fingerprint")
		}
		view, err := e.Successors(fp)
		if errors.Is(err, ErrUnknownState) {
			return writeError(w, http.StatusNotFound, err.Error())
		}
		if err != nil {
			e.logger.Error("computing successors", "fingerprint", fp, "error", err)
			return writeError(w, http.StatusInternalServerError, err.Error())
		}
		return writeJSON(w, http.StatusOK, view)
	}))
	mux.HandleFunc("/.export.dot", e.instrument("export", func(w http.ResponseWriter, r *http.Request) int {
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		w.WriteHeader(http.StatusOK)
		e.ExportDot(w)
		return http.StatusOK
	}))
	mux.Handle("/metrics", e.metricsHandler)
	return mux
}

// Only GET is served. Records the status and latency of every request.
func (e *Explorer[S, A]) instrument(name string, handle func(http.ResponseWriter, *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := http.StatusMethodNotAllowed
		if r.Method == http.MethodGet {
			status = handle(w, r)
		} else {
			writeError(w, status, "method not allowed")
		}
		e.metrics.Observe(name, status, start)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
	return code
}

func writeError(w http.ResponseWriter, code int, msg string) int {
	return writeJSON(w, code, map[string]any{"error": msg})
}

// Serve the handler on addr until the context is canceled.
//
// Returns nil after a graceful shutdown.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, lis, h)
}

// Serve the handler on the listener until the context is canceled.
func Serve(ctx context.Context, lis net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>twopc explorer</title>
<style>
body { font-family: monospace; margin: 2em; }
a { cursor: pointer; color: #0645ad; }
.violated { color: #b00; }
.inapplicable { color: #888; }
</style>
</head>
<body>
<h1>twopc explorer</h1>
<div id="status"></div>
<h2>Path</h2>
<ol id="path"></ol>
<h2>State</h2>
<pre id="state"></pre>
<ul id="properties"></ul>
<h2>Actions</h2>
<ul id="actions"></ul>
<script>
async function get(path) {
  const response = await fetch(path);
  return response.json();
}

function item(text, onclick, cls) {
  const li = document.createElement("li");
  if (onclick) {
    const a = document.createElement("a");
    a.textContent = text;
    a.onclick = onclick;
    li.appendChild(a);
  } else {
    li.textContent = text;
  }
  if (cls) li.className = cls;
  return li;
}

async function show(fingerprint) {
  const view = await get("/.states/" + fingerprint);
  document.getElementById("state").textContent = view.state;
  const path = document.getElementById("path");
  path.replaceChildren(item("init", showInit));
  view.path.forEach(a => path.appendChild(item(a)));
  const properties = document.getElementById("properties");
  properties.replaceChildren(...view.properties.map(p =>
    item(p.expectation + " " + p.name + (p.discovery ? ": discovery" : ""), null, p.discovery ? "violated" : "")));
  const actions = document.getElementById("actions");
  actions.replaceChildren(...view.actions.map(a => a.applicable
    ? item(a.action + " -> " + a.state, () => show(a.fingerprint))
    : item(a.action + " (inapplicable)", null, "inapplicable")));
}

async function showInit() {
  const states = await get("/.states");
  if (states.length > 0) show(states[0].fingerprint);
}

async function refresh() {
  const status = await get("/.status");
  const el = document.getElementById("status");
  el.replaceChildren();
  el.appendChild(document.createTextNode(
    (status.running ? "Checking: " : "Checked: ") + status.unique + " unique states, depth " + status.depth));
  const list = document.createElement("ul");
  status.discoveries.forEach(d => list.appendChild(
    item(d.expectation + " " + d.property + (d.failure ? ": counterexample" : ": example"), () => show(d.fingerprint), d.failure ? "violated" : "")));
  el.appendChild(list);
  if (status.running) setTimeout(refresh, 1000);
}

showInit();
refresh();
</script>
</body>
</html>
`
