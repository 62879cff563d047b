package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/hackeurope/nodehoist/internal/server"
)

// Config holds all environment configuration
type Config struct {
	// Server
	Port string

	// Registry (optional — archival skipped when RegistryToken is empty)
	RegistryURL   string
	RegistryToken string
	RegistryOwner string

	// AI explanation (optional — skipped when OpenAIAPIKey is empty)
	OpenAIAPIKey string
}

func loadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		Port:          getEnv("PORT", "8080"),
		RegistryURL:   getEnv("REGISTRY_URL", "https://git.duti.dev"),
		RegistryToken: getEnv("REGISTRY_TOKEN", ""),
		RegistryOwner: getEnv("REGISTRY_OWNER", "acheong08"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for demo
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client represents a connected WebSocket client
type Client struct {
	conn   *websocket.Conn
	config *Config
	store  *runStore
	send   chan server.Message
	// Track if a hoist run is in progress (one at a time per connection)
	runCtx    context.Context
	runCancel context.CancelFunc
	runID     string
}

func newClient(conn *websocket.Conn, config *Config, store *runStore) *Client {
	return &Client{
		conn:   conn,
		config: config,
		store:  store,
		send:   make(chan server.Message, 256),
	}
}

func (c *Client) SendMessage(msg server.Message) {
	select {
	case c.send <- msg:
	default:
		// Channel full, drop message
		log.Println("Warning: message channel full, dropping message")
	}
}

func (c *Client) SendLog(message, level string) {
	c.SendMessage(server.NewLogMessage(c.runID, message, level))
}

func (c *Client) SendProgress(percent int, stage, message string) {
	c.SendMessage(server.NewProgressMessage(c.runID, percent, stage, message))
}

func (c *Client) SendError(message string, err error) {
	c.SendMessage(server.NewErrorMessage(c.runID, message, err))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("Error writing message: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		// Cancel any running hoist
		if c.runCancel != nil {
			c.runCancel()
		}
		c.conn.Close()
	}()

	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		switch msg.Type {
		case server.TypeAnalyze:
			c.handleAnalyze(msg)
		case server.TypePing:
			c.SendMessage(server.Message{Type: "pong"})
		default:
			c.SendError(fmt.Sprintf("Unknown message type: %s", msg.Type), nil)
		}
	}
}

func (c *Client) handleAnalyze(msg server.Message) {
	// Check if a run is already in progress
	if c.runCtx != nil && c.runCtx.Err() == nil {
		c.SendError("A hoist run is already in progress", nil)
		return
	}

	payload, err := server.ParseAnalyzePayload(msg)
	if err != nil {
		c.SendError("Failed to parse analyze request", err)
		return
	}

	c.runCtx, c.runCancel = context.WithCancel(context.Background())
	c.runID = uuid.NewString()
	defer func() {
		c.runCtx = nil
		c.runCancel = nil
	}()

	pipeline := server.NewPipeline(
		c.config.RegistryURL, c.config.RegistryToken, c.config.RegistryOwner,
		c.config.OpenAIAPIKey, c,
	)

	if err := pipeline.Run(c.runCtx, c.runID, payload.PackageJSON, payload.Lockfile); err != nil {
		if c.runCtx.Err() == context.Canceled {
			c.SendLog("Hoist run cancelled", "warning")
		} else {
			c.SendError("Hoist run failed", err)
		}
		return
	}

	c.store.put(c.runID, runArtifacts{
		Output: pipeline.LastOutput,
		Report: pipeline.LastReport,
		Trace:  pipeline.LastTrace,
	})
}

func serveWs(config *Config, store *runStore, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := newClient(conn, config, store)

	go client.writePump()
	go client.readPump()
}

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store := newRunStore(100)

	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// WebSocket endpoint
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(config, store, w, r)
	})

	// Diagnostics endpoints, consumed by the companion agent and by anyone
	// polling a run's results outside the WebSocket stream.
	http.HandleFunc("/diagnostics/", diagnosticsHandler(store))
	http.HandleFunc("/reasons/", reasonsHandler(store))
	http.HandleFunc("/tree/", treeHandler(store))

	port := config.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
