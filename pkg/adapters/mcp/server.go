package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/ddt-tool/ddt"
	"github.com/ddt-tool/ddt/internal/logging"
	"github.com/ddt-tool/ddt/internal/presentation/graph"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/ddt-tool/ddt/pkg/ports"
	"github.com/ddt-tool/ddt/pkg/runner"
	"github.com/ddt-tool/ddt/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const packURIPrefix = "ddt://packs/"

// CaseResponse is the structured result of every case tool.
type CaseResponse struct {
	CaseID string      `json:"case_id" jsonschema_description:"The case the view belongs to"`
	View   domain.View `json:"view" jsonschema_description:"The node to present and the actions it accepts"`
}

// ValidationResponse reports the outcome of validate_pack.
type ValidationResponse struct {
	PackID string `json:"pack_id"`
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
}

type packArgs struct {
	PackID string `json:"pack_id"`
}

type caseArgs struct {
	CaseID string `json:"case_id"`
}

type answerArgs struct {
	CaseID string `json:"case_id"`
	Key    string `json:"key"`
}

type graphArgs struct {
	PackID string `json:"pack_id"`
	CaseID string `json:"case_id"`
}

// Server exposes decision packs and cases as MCP tools.
type Server struct {
	sessions  *session.Manager
	loader    ports.PackLoader
	lister    ports.Lister
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLister enables the list_packs tool.
func WithLister(l ports.Lister) Option {
	return func(s *Server) {
		s.lister = l
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions *session.Manager, loader ports.PackLoader, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		loader:    loader,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("ddt-mcp", ddt.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
		return nil
	})

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	caseID := mcp.WithString("case_id", mcp.Required(), mcp.Description("Case id returned by start_case"))

	s.mcpServer.AddTool(mcp.NewTool("list_packs",
		mcp.WithDescription("List the ids of the available decision packs."),
	), s.handleListPacks)

	s.mcpServer.AddTool(mcp.NewTool("validate_pack",
		mcp.WithDescription("Load a decision pack and report structural problems."),
		mcp.WithString("pack_id", mcp.Required(), mcp.Description("Pack id, e.g. figure1")),
		mcp.WithOutputSchema[ValidationResponse](),
	), mcp.NewStructuredToolHandler(s.handleValidatePack))

	s.mcpServer.AddTool(mcp.NewTool("start_case",
		mcp.WithDescription("Open a new case at the entry node of a decision pack."),
		mcp.WithString("pack_id", mcp.Required(), mcp.Description("Pack id, e.g. figure1")),
		mcp.WithOutputSchema[CaseResponse](),
	), mcp.NewStructuredToolHandler(s.handleStartCase))

	s.mcpServer.AddTool(mcp.NewTool("view_case",
		mcp.WithDescription("Return the current node of a case and the actions it accepts."),
		caseID,
		mcp.WithOutputSchema[CaseResponse](),
	), mcp.NewStructuredToolHandler(s.caseTool("view", func(ctx context.Context, id string) (domain.View, error) {
		return s.sessions.View(ctx, id)
	})))

	s.mcpServer.AddTool(mcp.NewTool("answer",
		mcp.WithDescription("Answer the current decision node with one of its choice keys."),
		caseID,
		mcp.WithString("key", mcp.Required(), mcp.Description("Choice key, e.g. yes or no")),
		mcp.WithOutputSchema[CaseResponse](),
	), mcp.NewStructuredToolHandler(s.handleAnswer))

	steps := []struct {
		name, description string
		op                func(ctx context.Context, id string) (domain.View, error)
	}{
		{"continue", "Acknowledge the current info or connector node and move on.", s.sessions.Continue},
		{"handoff", "Follow the current handoff node into its target pack.", s.sessions.Handoff},
		{"back", "Undo the last transition and restore the case state.", s.sessions.Back},
		{"restart", "Reset the case and re-enter the current pack.", s.sessions.Restart},
	}
	for _, st := range steps {
		s.mcpServer.AddTool(mcp.NewTool(st.name,
			mcp.WithDescription(st.description),
			caseID,
			mcp.WithOutputSchema[CaseResponse](),
		), mcp.NewStructuredToolHandler(s.caseTool(st.name, st.op)))
	}

	s.mcpServer.AddTool(mcp.NewTool("export_case",
		mcp.WithDescription("Export the case metadata, state and audit trace as JSON."),
		caseID,
	), s.handleExportCase)

	s.mcpServer.AddTool(mcp.NewTool("graph",
		mcp.WithDescription("Render a decision pack as a Mermaid flowchart, optionally highlighting a case path."),
		mcp.WithString("pack_id", mcp.Required(), mcp.Description("Pack id")),
		mcp.WithString("case_id", mcp.Description("Case whose visited nodes are highlighted (optional)")),
	), s.handleGraph)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(packURIPrefix+"{pack_id}", "Decision pack",
		mcp.WithTemplateDescription("Normalized decision pack definition"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.readPack)
}

func (s *Server) handleListPacks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.lister == nil {
		return mcp.NewToolResultError("pack listing is not supported by this source"), nil
	}
	ids, err := s.lister.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	data, _ := json.Marshal(ids)
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleValidatePack(ctx context.Context, request mcp.CallToolRequest, args packArgs) (ValidationResponse, error) {
	if args.PackID == "" {
		return ValidationResponse{}, errors.New("pack_id is required")
	}
	resp := ValidationResponse{PackID: args.PackID, Valid: true}
	if _, err := s.loader.Load(ctx, args.PackID); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}
	return resp, nil
}

func (s *Server) handleStartCase(ctx context.Context, request mcp.CallToolRequest, args packArgs) (CaseResponse, error) {
	if args.PackID == "" {
		return CaseResponse{}, errors.New("pack_id is required")
	}
	id, view, err := s.sessions.Create(ctx, args.PackID)
	if err != nil {
		return CaseResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return CaseResponse{CaseID: id, View: view}, nil
}

func (s *Server) handleAnswer(ctx context.Context, request mcp.CallToolRequest, args answerArgs) (CaseResponse, error) {
	key, err := runner.SanitizeInput(args.Key)
	if err != nil {
		s.logger.Warn("mcp answer input rejected", "err", err, "size", len(args.Key))
		return CaseResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	return s.caseTool("answer", func(ctx context.Context, id string) (domain.View, error) {
		return s.sessions.Answer(ctx, id, strings.TrimSpace(key))
	})(ctx, request, caseArgs{CaseID: args.CaseID})
}

// caseTool adapts a session operation to a structured tool handler.
func (s *Server) caseTool(name string, op func(ctx context.Context, id string) (domain.View, error)) mcp.StructuredToolHandlerFunc[caseArgs, CaseResponse] {
	return func(ctx context.Context, request mcp.CallToolRequest, args caseArgs) (CaseResponse, error) {
		if args.CaseID == "" {
			return CaseResponse{}, errors.New("case_id is required")
		}
		view, err := op(ctx, args.CaseID)
		if err != nil {
			s.logger.Debug("mcp tool rejected", "tool", name, "case_id", args.CaseID, "err", err)
			return CaseResponse{}, fmt.Errorf("%s failed: %w", name, err)
		}
		return CaseResponse{CaseID: args.CaseID, View: view}, nil
	}
}

func (s *Server) handleExportCase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("case_id", "")
	if id == "" {
		return mcp.NewToolResultError("case_id is required"), nil
	}
	export, err := s.sessions.Export(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	packID := request.GetString("pack_id", "")
	p, err := s.loader.Load(ctx, packID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph failed: %v", err)), nil
	}

	var overlay *graph.GraphOverlay
	if caseID := request.GetString("case_id", ""); caseID != "" {
		export, err := s.sessions.Export(ctx, caseID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("graph failed: %v", err)), nil
		}
		current := ""
		if export.Meta.PackID == packID {
			current = export.Meta.NodeID
		}
		overlay = graph.OverlayFromTrace(packID, export.Trace, current)
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(p, overlay)), nil
}

func (s *Server) readPack(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	p, err := s.loader.Load(ctx, strings.TrimPrefix(uri, packURIPrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to load pack: %w", err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
