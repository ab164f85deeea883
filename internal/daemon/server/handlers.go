package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	mwerrors "github.com/grovetools/mwstate/errors"
	"github.com/grovetools/mwstate/pkg/action"
	"github.com/grovetools/mwstate/pkg/notify"
	"github.com/grovetools/mwstate/pkg/store"
)

// maxActionSize bounds POST /api/dispatch bodies.
const maxActionSize = 1 << 20

// streamBuffer is the number of change tags held per SSE client.
const streamBuffer = 64

// changeMessage matches daemon.Change for SSE streaming.
type changeMessage struct {
	Namespace notify.Namespace `json:"namespace"`
}

// subscriptionCount is the body of GET /api/subscriptions/{mask}.
type subscriptionCount struct {
	Mask  string `json:"mask"`
	Count int    `json:"count"`
}

func (s *Server) store(w http.ResponseWriter) (*store.Store, bool) {
	if s.engine == nil || s.engine.Store() == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return nil, false
	}
	return s.engine.Store(), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err *mwerrors.MWError) {
	writeJSON(w, status, err)
}

// handleGetState returns the complete store state as JSON.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.Snapshot())
}

func (s *Server) handleGetSubscriptions(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.GetAllSubscriptions())
}

// handleGetSubscription returns one mask's count, or 404 when the mask has
// no active subscriptions.
func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w)
	if !ok {
		return
	}
	mask := r.PathValue("mask")
	count, found := st.GetNumberOfSubscriptions(mask)
	if !found {
		writeError(w, http.StatusNotFound,
			mwerrors.New(mwerrors.ErrCodeInvalidInput, fmt.Sprintf("no active subscriptions for '%s'", mask)).
				WithDetail("mask", mask))
		return
	}
	writeJSON(w, http.StatusOK, subscriptionCount{Mask: mask, Count: count})
}

func (s *Server) handleGetServices(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.GetAvailableRPCServices())
}

func (s *Server) handleGetMethods(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.GetAvailableRPCMethods())
}

func (s *Server) handleGetServiceMethods(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w)
	if !ok {
		return
	}
	service := r.PathValue("service")
	methods := st.GetRPCMethods(service)
	if methods == nil {
		writeError(w, http.StatusNotFound,
			mwerrors.New(mwerrors.ErrCodeInvalidInput, fmt.Sprintf("no methods received for service '%s'", service)).
				WithDetail("service", service))
		return
	}
	writeJSON(w, http.StatusOK, methods)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.GetEventLog())
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.runningConfig)
}

// handleDispatch decodes one action document and queues it as a VIEW_ACTION.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxActionSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, mwerrors.Wrap(err, mwerrors.ErrCodeInvalidInput, "failed to read request body"))
		return
	}
	a, err := action.Decode(body)
	if err != nil {
		mwErr, ok := err.(*mwerrors.MWError)
		if !ok {
			mwErr = mwerrors.Wrap(err, mwerrors.ErrCodeInvalidAction, "invalid action")
		}
		writeError(w, http.StatusBadRequest, mwErr)
		return
	}

	if err := s.engine.Post(r.Context(), action.ViewAction(a)); err != nil {
		writeError(w, http.StatusServiceUnavailable, mwerrors.Wrap(err, mwerrors.ErrCodeInternal, "failed to queue action"))
		return
	}
	s.logger.WithField("type", string(a.Kind())).Debug("Action queued")
	writeJSON(w, http.StatusAccepted, map[string]string{"type": string(a.Kind())})
}

// handleStream provides Server-Sent Events (SSE) for change notifications.
// Each message carries only the namespace that changed; clients re-query the
// matching endpoint. The first message is untagged so clients load everything.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w)
	if !ok {
		return
	}

	// Ensure the connection supports flushing
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Listeners run on the dispatch goroutine, so they must never block.
	// A slow client that overflows the queue is sent an untagged change.
	queue := notify.NewQueue(streamBuffer)
	id := st.AddChangeListener(queue.Push)
	defer st.RemoveChangeListener(id)

	// Send initial ping to confirm connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE client connected")

	send := func(ns notify.Namespace) bool {
		data, err := json.Marshal(changeMessage{Namespace: ns})
		if err != nil {
			s.logger.WithError(err).Error("Failed to marshal change")
			return true
		}
		// SSE format: "data: {json}\n\n"
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(notify.None) {
		return
	}
	for {
		ns, err := queue.Next(r.Context())
		if err != nil {
			s.logger.Debug("SSE client disconnected")
			return
		}
		if !send(ns) {
			return
		}
	}
}
