// Package api exposes the engine to operators over HTTP and OSC.
package api

import (
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"sourcerer/lib/engine"
	"sourcerer/lib/source"
	"sourcerer/lib/switcher"
)

func Router(e *engine.Engine) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/api/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, e.State())
	})

	r.Get("/api/report", func(w http.ResponseWriter, r *http.Request) {
		rep, ok := e.Scheduler().Report()
		if !ok {
			writeError(w, http.StatusNotFound, "nothing playing")
			return
		}
		writeJSON(w, http.StatusOK, rep)
	})

	r.Get("/api/frame.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := png.Encode(w, e.Frame()); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "frame.png",
			}).WithError(err).Debug("Frame write failed")
		}
	})

	r.Post("/api/take/{id}", func(w http.ResponseWriter, r *http.Request) {
		force := boolQuery(r, "force")
		err := e.Controller().Take(switcher.Identifier(chi.URLParam(r, "id")), force)
		respond(w, err, e)
	})

	r.Post("/api/take", func(w http.ResponseWriter, r *http.Request) {
		var s source.Source
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		respond(w, e.Controller().Take(switcher.Temporary(&s), boolQuery(r, "force")), e)
	})

	r.Post("/api/take-selected", func(w http.ResponseWriter, r *http.Request) {
		respond(w, e.Controller().TakeSelected(boolQuery(r, "force")), e)
	})

	r.Post("/api/select/{index}", func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "index must be a number")
			return
		}
		respond(w, e.Controller().Select(index), e)
	})

	r.Post("/api/queue/clear", func(w http.ResponseWriter, r *http.Request) {
		e.Controller().ClearPendingQueue()
		respond(w, nil, e)
	})

	r.Post("/api/queue/skip", func(w http.ResponseWriter, r *http.Request) {
		e.Controller().SkipToLastPending()
		respond(w, nil, e)
	})

	r.Post("/api/queue/enable", func(w http.ResponseWriter, r *http.Request) {
		e.Controller().SetQueueEnabled(boolQuery(r, "on"))
		respond(w, nil, e)
	})

	r.Post("/api/done", func(w http.ResponseWriter, r *http.Request) {
		e.Done()
		respond(w, nil, e)
	})

	r.Post("/api/trigger/{name}", func(w http.ResponseWriter, r *http.Request) {
		level := true
		if r.URL.Query().Has("level") {
			level = boolQuery(r, "level")
		}
		e.SetSignal(chi.URLParam(r, "name"), level)
		respond(w, nil, e)
	})

	r.Mount("/api/sources", sourcesRouter(e.List()))
	return r
}

func sourcesRouter(list *source.List) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, list.All())
	})

	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		s := source.Default()
		if err := json.NewDecoder(r.Body).Decode(s); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		at := list.Count()
		if v := r.URL.Query().Get("at"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "at must be a number")
				return
			}
			at = n
		}
		index, name, err := list.Add(s, at)
		if err != nil {
			writeError(w, statusOf(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, switcher.Ref{Index: index, Name: name})
	})

	r.Delete("/{index}", func(w http.ResponseWriter, r *http.Request) {
		index, ok := intParam(w, r, "index")
		if !ok {
			return
		}
		if err := list.Delete(index); err != nil {
			writeError(w, statusOf(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/{index}/move/{to}", func(w http.ResponseWriter, r *http.Request) {
		from, ok := intParam(w, r, "index")
		if !ok {
			return
		}
		to, ok := intParam(w, r, "to")
		if !ok {
			return
		}
		if err := list.Move(from, to); err != nil {
			writeError(w, statusOf(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/{index}/rename", func(w http.ResponseWriter, r *http.Request) {
		index, ok := intParam(w, r, "index")
		if !ok {
			return
		}
		var b struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		name, err := list.Rename(index, b.Name)
		if err != nil {
			writeError(w, statusOf(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, switcher.Ref{Index: index, Name: name})
	})

	return r
}

func respond(w http.ResponseWriter, err error, e *engine.Engine) {
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e.State())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, switcher.ErrSourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, switcher.ErrInvalidSourceData):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be a number")
		return 0, false
	}
	return n, true
}

func boolQuery(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}
