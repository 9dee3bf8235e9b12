package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Packages
	kong "github.com/alecthomas/kong"
	jsonschema "github.com/google/jsonschema-go/jsonschema"

	mcpserver "github.com/mutablelogic/go-mcp/pkg/mcpserver"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
	streamablehttp "github.com/mutablelogic/go-mcp/pkg/transport/streamablehttp"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type CLI struct {
	Addr    string        `name:"addr" env:"GOLLM_ADDR" help:"HTTP listen address" default:"localhost:8085"`
	Timeout time.Duration `name:"timeout" help:"HTTP server read/write timeout" default:"15m"`
}

func main() {
	cli := CLI{}
	kong.Parse(&cli,
		kong.Name("mcp-http"),
		kong.Description("MCP (Model Context Protocol) Streamable HTTP server"),
		kong.UsageOnError(),
	)

	server, err := mcpserver.New("myserver", "0.1.0")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(-1)
	}
	if err := server.RegisterTool(Weather{}); err != nil {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(-1)
	}

	handler, err := streamablehttp.New(server,
		streamablehttp.WithOnSessionInitialized(func(sessionID string) {
			log.Printf("session initialized: %s", sessionID)
		}),
		streamablehttp.WithOnSessionClosed(func(sessionID string) {
			log.Printf("session closed: %s", sessionID)
		}),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(-1)
	}

	httpServer := &http.Server{
		Addr:         cli.Addr,
		Handler:      handler,
		ReadTimeout:  cli.Timeout,
		WriteTimeout: cli.Timeout,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", cli.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(-1)
	}
}

//////////////////////////////////////////////////////////////////////////////
// Create a tool

type Weather struct{}

func (Weather) Name() string {
	return "weather"
}

func (Weather) Description() string {
	return "Return current weather information"
}

func (Weather) Schema() (*jsonschema.Schema, error) {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"city"},
		Properties: map[string]*jsonschema.Schema{
			"city": {Type: "string", Description: "City to return weather for"},
		},
	}, nil
}

func (Weather) Call(_ context.Context, args map[string]any) (mcptype.CallToolResult, error) {
	city, _ := args["city"].(string)
	text := fmt.Sprintf("The weather in %s is sunny", city)
	return mcptype.CallToolResult{Content: []mcptype.Content{mcptype.NewTextContent(text)}}, nil
}
