package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// Packages
	kong "github.com/alecthomas/kong"
	jsonschema "github.com/google/jsonschema-go/jsonschema"

	mcpserver "github.com/mutablelogic/go-mcp/pkg/mcpserver"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
	protocol "github.com/mutablelogic/go-mcp/pkg/protocol"
	stdio "github.com/mutablelogic/go-mcp/pkg/transport/stdio"
)

type CLI struct {
	Config string `name:"config" help:"Path to a YAML file overriding the server name/version/instructions" type:"path" optional:""`
}

func main() {
	cli := CLI{}
	kong.Parse(&cli,
		kong.Name("mcp"),
		kong.Description("MCP (Model Context Protocol) stdio server"),
		kong.UsageOnError(),
	)

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(-1)
	}
	name, version := "myserver", "0.1.0"
	if cfg.Name != "" {
		name = cfg.Name
	}
	if cfg.Version != "" {
		version = cfg.Version
	}

	// Create a new MCP server instance and register tools
	var opts []mcpserver.Opt
	if cfg.Instructions != "" {
		opts = append(opts, mcpserver.WithInstructions(cfg.Instructions))
	}
	server, err := mcpserver.New(name, version, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(-1)
	}
	if err := server.RegisterTool(Weather{}); err != nil {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(-1)
	}

	// Cancel the server on interrupt or termination
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Wire the stdio transport to a Conn bound to the server
	transport := stdio.New(os.Stdout)
	defer transport.Close()
	conn := protocol.New(transport, protocol.ServerCapabilityChecker(server.Capabilities()))
	server.Bind(conn)

	// Run the read loop, delivering frames to the Conn until stdin closes
	if err := stdio.Run(ctx, os.Stdin, conn); err != nil {
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
