package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/cjeanneret/fieldtools/internal/camera"
	"github.com/cjeanneret/fieldtools/internal/coc"
	"github.com/cjeanneret/fieldtools/internal/logic/optics"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// CameraRequest is the body of POST /cameras and PUT /cameras/{id}.
// Either CoC or CoCPreset must be given.
type CameraRequest struct {
	Description string   `json:"description"`
	CoC         *coc.CoC `json:"coc,omitempty"`
	CoCPreset   string   `json:"coc_preset,omitempty"` // e.g., "APS-C (Canon)"
}

// MoveRequest is the body of POST /cameras/move.
type MoveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// SelectRequest is the body of PUT /cameras/selected.
type SelectRequest struct {
	Identifier int `json:"identifier"`
}

// DOFDefaults holds the values GET /dof uses for omitted query parameters.
type DOFDefaults struct {
	FocalLengthMm float64 `json:"focal_length_mm"`
	Aperture      float64 `json:"aperture"`
	DistanceM     float64 `json:"distance_m"`
}

// DOFResponse is returned by GET /dof. Infinite distances are encoded as null.
type DOFResponse struct {
	Camera      camera.Camera `json:"camera"`
	FocalLength float64       `json:"focal_length_mm"`
	Aperture    float64       `json:"aperture"`
	DistanceM   float64       `json:"distance_m"`
	HyperfocalM float64       `json:"hyperfocal_m"`
	NearM       float64       `json:"near_m"`
	FarM        *float64      `json:"far_m"`
	TotalM      *float64      `json:"total_m"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Cameras  *camera.Store
	Events   *ChangeBroadcaster
	Defaults DOFDefaults
	log      zerolog.Logger
	staticFS fs.FS
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(cameras *camera.Store, events *ChangeBroadcaster, defaults DOFDefaults, staticFS fs.FS, log zerolog.Logger) *Handlers {
	return &Handlers{
		Cameras:  cameras,
		Events:   events,
		Defaults: defaults,
		log:      log.With().Str("component", "web").Logger(),
		staticFS: staticFS,
	}
}

// HandleList handles GET /cameras.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	cams, err := h.Cameras.FindAll(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cams)
}

// HandleCount handles GET /cameras/count.
func (h *Handlers) HandleCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Cameras.Count(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

// HandleAtIndex handles GET /cameras/index/{index}.
func (h *Handlers) HandleAtIndex(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	cam, ok, err := h.Cameras.FindAtIndex(r.Context(), index)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !ok {
		http.Error(w, "no camera at index", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

// HandleGet handles GET /cameras/{id}.
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentifier(w, r)
	if !ok {
		return
	}
	cam, found, err := h.Cameras.Find(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !found {
		http.Error(w, camera.ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

// HandleCreate handles POST /cameras. The store assigns the identifier.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	req, c, ok := decodeCameraRequest(w, r)
	if !ok {
		return
	}
	cam, err := h.Cameras.Add(r.Context(), req.Description, c)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.publish(EventSaved, cam.Identifier, "Camera added: "+cam.Description)
	writeJSON(w, http.StatusCreated, cam)
}

// HandleUpdate handles PUT /cameras/{id}: insert or replace by identifier.
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentifier(w, r)
	if !ok {
		return
	}
	req, c, ok := decodeCameraRequest(w, r)
	if !ok {
		return
	}
	cam, err := camera.New(req.Description, c, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Cameras.Save(r.Context(), cam); err != nil {
		h.fail(w, err)
		return
	}
	h.publish(EventSaved, cam.Identifier, "Camera saved: "+cam.Description)
	writeJSON(w, http.StatusOK, cam)
}

// HandleDelete handles DELETE /cameras/{id}.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentifier(w, r)
	if !ok {
		return
	}
	if err := h.Cameras.Delete(r.Context(), camera.Camera{Identifier: id}); err != nil {
		h.fail(w, err)
		return
	}
	h.publish(EventDeleted, id, "")
	w.WriteHeader(http.StatusNoContent)
}

// HandleMove handles POST /cameras/move.
func (h *Handlers) HandleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Cameras.Move(r.Context(), req.From, req.To); err != nil {
		h.fail(w, err)
		return
	}
	h.Events.Publish(EventMoved, nil, fmt.Sprintf("Camera moved from %d to %d", req.From, req.To))
	cams, err := h.Cameras.FindAll(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cams)
}

// HandleSelected handles GET /cameras/selected.
func (h *Handlers) HandleSelected(w http.ResponseWriter, r *http.Request) {
	cam, ok, err := h.Cameras.FindSelected(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if !ok {
		http.Error(w, "no camera selected", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cam)
}

// HandleSelect handles PUT /cameras/selected.
func (h *Handlers) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Cameras.Select(r.Context(), req.Identifier); err != nil {
		h.fail(w, err)
		return
	}
	h.publish(EventSelected, req.Identifier, "")
	h.HandleSelected(w, r)
}

// HandlePresets handles GET /coc/presets.
func (h *Handlers) HandlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, coc.Presets())
}

// HandleDOF handles GET /dof?focal_length_mm=50&aperture=8&distance_m=3&camera=2.
// Without a camera parameter the selected camera is used.
func (h *Handlers) HandleDOF(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	focal, err1 := queryFloat(q.Get("focal_length_mm"), h.Defaults.FocalLengthMm)
	aperture, err2 := queryFloat(q.Get("aperture"), h.Defaults.Aperture)
	distanceM, err3 := queryFloat(q.Get("distance_m"), h.Defaults.DistanceM)
	if err := errors.Join(err1, err2, err3); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		cam   camera.Camera
		found bool
		err   error
	)
	if raw := q.Get("camera"); raw != "" {
		id, convErr := strconv.Atoi(raw)
		if convErr != nil {
			http.Error(w, "camera must be an integer", http.StatusBadRequest)
			return
		}
		cam, found, err = h.Cameras.Find(r.Context(), id)
	} else {
		cam, found, err = h.Cameras.FindSelected(r.Context())
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	if !found {
		http.Error(w, "camera not found or none selected", http.StatusNotFound)
		return
	}

	res, err := optics.DepthOfField(optics.Params{
		FocalLengthMm: focal,
		Aperture:      aperture,
		CoCMm:         cam.CoC.Value,
		DistanceMm:    distanceM * optics.MmPerMetre,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, DOFResponse{
		Camera:      cam,
		FocalLength: focal,
		Aperture:    aperture,
		DistanceM:   distanceM,
		HyperfocalM: res.HyperfocalMm / optics.MmPerMetre,
		NearM:       res.NearMm / optics.MmPerMetre,
		FarM:        finiteMetres(res.FarMm),
		TotalM:      finiteMetres(res.TotalMm),
	})
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleEventStream handles GET /events/stream for SSE.
func (h *Handlers) HandleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Events.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// fail maps store errors to HTTP status codes.
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, camera.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, camera.ErrIndexOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, camera.ErrIdentifiersExhausted):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error().Err(err).Msg("camera store request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handlers) publish(kind string, identifier int, msg string) {
	h.Events.Publish(kind, &identifier, msg)
}

// ValidateCameraRequest resolves the CoC of a camera request.
func ValidateCameraRequest(req CameraRequest) (coc.CoC, error) {
	switch {
	case req.CoC != nil && req.CoCPreset != "":
		return coc.CoC{}, fmt.Errorf("give either coc or coc_preset, not both")
	case req.CoC != nil:
		if err := req.CoC.Validate(); err != nil {
			return coc.CoC{}, err
		}
		return *req.CoC, nil
	case req.CoCPreset != "":
		p, ok := coc.FindPreset(req.CoCPreset)
		if !ok {
			return coc.CoC{}, fmt.Errorf("unknown coc preset %q", req.CoCPreset)
		}
		return p, nil
	default:
		return coc.CoC{}, fmt.Errorf("coc or coc_preset is required")
	}
}

func decodeCameraRequest(w http.ResponseWriter, r *http.Request) (CameraRequest, coc.CoC, bool) {
	var req CameraRequest
	if !decodeJSON(w, r, &req) {
		return req, coc.CoC{}, false
	}
	c, err := ValidateCameraRequest(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, coc.CoC{}, false
	}
	return req, c, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func pathIdentifier(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		http.Error(w, "identifier must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryFloat(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return v, nil
}

func finiteMetres(mm float64) *float64 {
	if math.IsInf(mm, 0) {
		return nil
	}
	m := mm / optics.MmPerMetre
	return &m
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
