package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/xhad/finsight/internal/models"
	cfgPkg "github.com/xhad/finsight/pkg/config"
	"github.com/xhad/finsight/pkg/engine"
	"github.com/xhad/finsight/pkg/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is the wire format in both directions. Inbound messages carry the
// question in Content; outbound messages are stage progress, errors, or the
// final answer with its sources in Data.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type WSServer struct {
	engine *engine.Engine
}

func NewWSServer(cfg *cfgPkg.Config) (*WSServer, error) {
	eng, err := engine.Open(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %v", err)
	}
	return &WSServer{engine: eng}, nil
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Error reading message: %v", err)
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		s.handleQuestion(conn, msg)
	}
}

func (s *WSServer) handleQuestion(conn *websocket.Conn, msg Message) {
	question := strings.TrimSpace(msg.Content)
	if question == "" {
		s.sendMessage(conn, "error", "empty question")
		return
	}

	// A per-connection pipeline so stage progress streams to this client.
	cfg := s.engine.Config
	orch := orchestrator.NewWithConfig(orchestrator.OrchestratorConfig{
		MaxFollowUps:    cfg.Pipeline.MaxFollowUps,
		GapChunks:       cfg.Pipeline.GapChunks,
		GapExcerptChars: cfg.Pipeline.GapExcerptChars,
		OnStage: func(stage orchestrator.Stage, detail string) {
			content := string(stage)
			if detail != "" {
				content = fmt.Sprintf("%s: %s", stage, detail)
			}
			s.sendMessage(conn, "status", content)
		},
	}, s.engine.Answerer, s.engine.Chat)

	result, err := orch.Ask(context.Background(), question)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Error: %v", err))
		return
	}

	s.sendResult(conn, result)
}

func (s *WSServer) sendResult(conn *websocket.Conn, result orchestrator.Result) {
	seen := make(map[string]bool)
	var sources []string
	for _, answer := range append([]models.Answer{result.Main}, result.FollowUps...) {
		for _, c := range answer.Citations {
			src := fmt.Sprintf("[%d] %s, chunk %d", c.Ref, c.Source, c.ChunkIndex)
			if !seen[src] {
				seen[src] = true
				sources = append(sources, src)
			}
		}
	}

	msg := Message{
		Type:    "response",
		Content: result.Final,
		Data: map[string]interface{}{
			"question":    result.Question,
			"target_year": result.TargetYear,
			"follow_ups":  len(result.FollowUps),
			"sources":     sources,
		},
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (s *WSServer) sendMessage(conn *websocket.Conn, msgType string, content string) {
	msg := Message{
		Type:    msgType,
		Content: content,
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	server, err := NewWSServer(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer server.engine.Close()

	http.HandleFunc("/ws", server.handleWebSocket)

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting WebSocket server on port %s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}
