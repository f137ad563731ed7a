package server

import (
	_ "embed"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/WilliamStanton/vibe-build/internal/logging"
	"github.com/WilliamStanton/vibe-build/internal/pipeline"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

const (
	// maxUploadSize bounds an image-to-build upload.
	maxUploadSize = 20 << 20
	// maxQRText bounds the text encoded by /api/qr.
	maxQRText = 2048
	// qrSize is the QR image edge in pixels.
	qrSize = 280
)

//go:embed web/image-input.html
var imageInputHTML []byte

// imageInputPage serves the image upload page.
func (s *Server) imageInputPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(imageInputHTML)
}

// health handles GET /health.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"sessions": s.registry.Count(),
	})
}

// NetworkInfo is the response of GET /api/network.
type NetworkInfo struct {
	LanIP   *string `json:"lanIp"`
	WebPort int     `json:"webPort"`
}

// network handles GET /api/network.
func (s *Server) network(w http.ResponseWriter, r *http.Request) {
	info := NetworkInfo{WebPort: s.config.WebPort}
	if ip := lanIPv4(); ip != "" {
		info.LanIP = &ip
	}
	writeJSON(w, http.StatusOK, info)
}

// lanIPv4 returns the first non-loopback IPv4 address of an interface that
// is up, or "" when there is none.
func lanIPv4() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4.String()
			}
		}
	}
	return ""
}

// listSessions handles GET /api/sessions.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

// ImageToBuildResponse is the success response of POST /api/image-to-build.
type ImageToBuildResponse struct {
	Message         string `json:"message"`
	GeneratedPrompt string `json:"generatedPrompt"`
}

// imageToBuild handles POST /api/image-to-build. The generated prompt is
// started on the named player's session exactly as if they had typed it.
func (s *Server) imageToBuild(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid form data.")
		return
	}

	playerName := strings.TrimSpace(r.FormValue("playerName"))
	notes := strings.TrimSpace(r.FormValue("notes"))
	if playerName == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Missing player name.")
		return
	}

	var origin types.Vec3
	var ok bool
	if origin.X, ok = parseCoord(r.FormValue("x")); ok {
		if origin.Y, ok = parseCoord(r.FormValue("y")); ok {
			origin.Z, ok = parseCoord(r.FormValue("z"))
		}
	}
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid origin coordinates.")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Image file is required.")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Uploaded file must be an image.")
		return
	}

	sess, found := s.registry.LookupByPeerName(playerName)
	if !found {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "No active in-game session for that player. Connect in Minecraft first.")
		return
	}
	if sess.Busy() {
		writeError(w, http.StatusConflict, ErrCodeBusy, "Build already in progress. Wait for it to finish or /vb cancel.")
		return
	}

	if s.images == nil {
		writeError(w, http.StatusInternalServerError, ErrCodeProviderError, "Image generation is not configured.")
		return
	}
	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Could not read image.")
		return
	}

	generated, err := s.images.Generate(r.Context(), image, mimeType, notes)
	if err != nil {
		logging.Error().Err(err).Str("player", playerName).Msg("Image to build failed")
		writeError(w, http.StatusInternalServerError, ErrCodeProviderError, err.Error())
		return
	}

	pos := origin.Round()
	if _, err := s.runner.Start(sess.Context(), sess, pipeline.Request{Prompt: generated, Position: pos}); err != nil {
		if errors.Is(err, pipeline.ErrBusy) {
			writeError(w, http.StatusConflict, ErrCodeBusy, "Build already in progress. Wait for it to finish or /vb cancel.")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	sess.Logger().Info().Str("player", playerName).Stringer("position", pos).Msg("Image prompt submitted")

	writeJSON(w, http.StatusOK, ImageToBuildResponse{
		Message:         "Prompt generated and sent to your game session.",
		GeneratedPrompt: generated,
	})
}

// parseCoord parses a form coordinate. An empty value is 0.
func parseCoord(v string) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// qrCode handles GET /api/qr.
func (s *Server) qrCode(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	if text == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Missing text query parameter.")
		return
	}
	if len(text) > maxQRText {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "QR text too long.")
		return
	}
	u, err := url.Parse(text)
	if err != nil || u.Scheme == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "QR text must be a valid URL.")
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "QR URL must use http or https.")
		return
	}
	if u.Host == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "QR text must be a valid URL.")
		return
	}

	png, err := qrcode.Encode(text, qrcode.Medium, qrSize)
	if err != nil {
		logging.Error().Err(err).Msg("QR encode failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to generate QR code.")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
