package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ctcdecode/ctcdecode/internal/decoderstate"
)

// upgrader configures the WebSocket handshake. Origin checking is left to
// reverse-proxy configuration in production deployments.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamMessage is one message exchanged over a streaming decode connection.
//
// Clients send {"type":"frame","probs":[...]} for each new timestep's class
// probabilities and {"type":"end"} to request the final ranked hypotheses.
// The server answers with "partial" messages after each frame and a "final"
// message once the client ends the stream.
type StreamMessage struct {
	Type  string    `json:"type"`
	Probs []float32 `json:"probs,omitempty"`
}

// StreamResponse is a server-to-client message on a streaming connection.
type StreamResponse struct {
	Type       string             `json:"type"` // "partial", "final", "error"
	Hypotheses []HypothesisResult `json:"hypotheses,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type streamConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// streamHandler upgrades the connection and decodes one utterance's worth of
// per-timestep probability frames as they arrive.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("streaming decode connection established", "remote_addr", r.RemoteAddr)
	s.handleStreamConnection(conn)
}

// handleStreamConnection drives one streaming utterance: a fresh decoder
// state lives for the lifetime of the connection, advancing one frame at a
// time as messages arrive.
func (s *Server) handleStreamConnection(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-stopPing:
				return
			}
		}
	}()

	dcfg := decoderBeamConfig(s)
	st, err := decoderstate.New(s.alphabet, dcfg.beamSize, dcfg.cutoffProb, dcfg.cutoffTopN, s.scorer)
	if err != nil {
		s.sendStreamError(conn, err.Error())
		return
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("websocket error", "error", err)
			}
			return
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()
		if messageType != websocket.TextMessage {
			continue
		}

		var msg StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendStreamError(conn, "invalid message: "+err.Error())
			continue
		}

		switch msg.Type {
		case "frame":
			if len(msg.Probs) == 0 {
				s.sendStreamError(conn, "frame message requires non-empty probs")
				continue
			}
			st.Next([][]float32{msg.Probs})
			websocketFramesDecoded.Inc()

			out := st.Decode()
			s.sendStreamResponse(conn, StreamResponse{Type: "partial", Hypotheses: s.toHypotheses(out)})
		case "end":
			out := st.Decode()
			decodeRequestsTotal.WithLabelValues("websocket", "success").Inc()
			s.sendStreamResponse(conn, StreamResponse{Type: "final", Hypotheses: s.toHypotheses(out)})
			return
		default:
			s.sendStreamError(conn, "unsupported message type: "+msg.Type)
		}
	}
}

func (s *Server) toHypotheses(out []decoderstate.Output) []HypothesisResult {
	hyps := make([]HypothesisResult, len(out))
	for i, o := range out {
		hyps[i] = HypothesisResult{Text: s.alphabet.LabelsToString(o.Tokens), Tokens: o.Tokens, LogProb: o.Confidence}
	}
	return hyps
}

func (s *Server) sendStreamResponse(conn streamConnWriter, resp StreamResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal stream response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("failed to send stream message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func (s *Server) sendStreamError(conn streamConnWriter, message string) {
	s.sendStreamResponse(conn, StreamResponse{Type: "error", Error: message})
}

type beamConfig struct {
	beamSize   int
	cutoffProb float64
	cutoffTopN int
}

func decoderBeamConfig(s *Server) beamConfig {
	return beamConfig{
		beamSize:   s.decoder.BeamSize(),
		cutoffProb: s.decoder.CutoffProb(),
		cutoffTopN: s.decoder.CutoffTopN(),
	}
}
