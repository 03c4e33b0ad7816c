package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/a3tai/casedocs/internal/assembly"
	"github.com/a3tai/casedocs/internal/caserecord"
	"github.com/a3tai/casedocs/internal/config"
	"github.com/a3tai/casedocs/internal/descriptions"
	"github.com/a3tai/casedocs/internal/logging"
	"github.com/a3tai/casedocs/internal/pdf/form"
	"github.com/a3tai/casedocs/internal/pdf/security"
	"github.com/a3tai/casedocs/internal/resolver"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	assembler *assembly.Assembler
	log       logrus.FieldLogger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, assembler *assembly.Assembler, logger logrus.FieldLogger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if assembler == nil {
		return nil, fmt.Errorf("assembler cannot be nil")
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		assembler: assembler,
		log:       logging.OrDiscard(logger).WithField("component", "mcp"),
		mcpServer: mcpServer,
	}

	// Register tools
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ListFormsTool,
		mcp.WithDescription(descriptions.ListFormsDescription),
	), s.handleListForms)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ListFieldsTool,
		mcp.WithDescription(descriptions.ListFieldsDescription),
		mcp.WithString("form",
			mcp.Required(),
			mcp.Description("Form id (boe-502-d, boe-502-a@2019) or a PDF file name inside the template directory"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'text' (default) or 'json'"),
		),
	), s.handleListFields)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.FillFormTool,
		mcp.WithDescription(descriptions.FillFormDescription),
		mcp.WithString("form",
			mcp.Required(),
			mcp.Description("Form id, optionally pinned to a revision with @"),
		),
		mcp.WithString("case_data",
			mcp.Required(),
			mcp.Description("Case data as a JSON object"),
		),
		mcp.WithString("output",
			mcp.Description("File name inside the output directory; the PDF is returned base64 encoded when empty"),
		),
	), s.handleFillForm)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.GenerateDocumentsTool,
		mcp.WithDescription(descriptions.GenerateDocumentsDescription),
		mcp.WithString("case_data",
			mcp.Required(),
			mcp.Description("Case data as a JSON object"),
		),
		mcp.WithString("forms",
			mcp.Description("Comma separated form ids; the generate_* flags of the case choose when empty"),
		),
		mcp.WithString("output_dir",
			mcp.Description("Directory inside the output directory to write the documents to"),
		),
	), s.handleGenerateDocuments)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ServerInfoTool,
		mcp.WithDescription(descriptions.ServerInfoDescription),
	), s.handleServerInfo)
}

// stringArg returns an optional string argument
func stringArg(request mcp.CallToolRequest, name string) string {
	if v, ok := request.GetArguments()[name].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Handler functions
func (s *Server) handleListForms(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatForms(s.assembler.Forms())), nil
}

func (s *Server) handleListFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("form")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var fields []form.Field
	if strings.HasSuffix(strings.ToLower(id), ".pdf") {
		fields, err = s.templateFields(id)
	} else {
		fields, err = s.assembler.Fields(ctx, id)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if stringArg(request, "format") == "json" {
		data, err := json.MarshalIndent(form.GroupByType(fields), "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	return mcp.NewToolResultText(s.formatFields(id, fields)), nil
}

// templateFields reads a PDF from the template directory
func (s *Server) templateFields(name string) ([]form.Field, error) {
	if s.config.TemplateDir == "" {
		return nil, fmt.Errorf("no template directory configured")
	}
	paths, err := security.NewPathValidator(s.config.TemplateDir)
	if err != nil {
		return nil, err
	}
	file, err := paths.Resolve(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("cannot access template: %w", err)
	}
	if info.Size() > s.config.MaxFileSize {
		return nil, fmt.Errorf("template too large: %d bytes (max: %d bytes)", info.Size(), s.config.MaxFileSize)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return assembly.FieldsFromBytes(data)
}

func (s *Server) handleFillForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("form")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := caserecord.FromValue(request.GetArguments()["case_data"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := s.assembler.Fill(ctx, id, rec.Normalize())
	if err != nil {
		s.log.WithError(err).WithField("form", id).Warn("Fill failed")
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := s.formatDocument(doc)

	if output := stringArg(request, "output"); output != "" {
		fsys, err := assembly.OutputDir(s.config.OutputDir)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := doc.Save(fsys, output); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text += fmt.Sprintf("\nSaved to: %s\n", path.Join(s.config.OutputDir, output))
		return mcp.NewToolResultText(text), nil
	}

	text += "\nPDF (base64):\n" + base64.StdEncoding.EncodeToString(doc.Data)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleGenerateDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rec, err := caserecord.FromValue(request.GetArguments()["case_data"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var forms []string
	if list := stringArg(request, "forms"); list != "" {
		forms = strings.Split(list, ",")
	}

	result := s.assembler.Generate(ctx, assembly.Request{Record: rec, Forms: forms})

	outputDir := stringArg(request, "output_dir")
	if outputDir == "" {
		data, err := json.MarshalIndent(result.Response(), "", "  ")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if !result.Success() {
			return mcp.NewToolResultError(string(data)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}

	text := s.formatBatch(result)
	if result.Success() {
		fsys, err := assembly.OutputDir(s.config.OutputDir)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		for _, doc := range result.Documents {
			name := path.Join(outputDir, doc.FileName())
			if err := doc.Save(fsys, name); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			text += fmt.Sprintf("Saved: %s\n", path.Join(s.config.OutputDir, name))
		}
		return mcp.NewToolResultText(text), nil
	}
	return mcp.NewToolResultError(text), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo()), nil
}

// Formatting methods
func (s *Server) formatForms(forms []assembly.FormInfo) string {
	if len(forms) == 0 {
		return "No forms registered"
	}

	text := fmt.Sprintf("%d form(s) available:\n", len(forms))
	for i, f := range forms {
		text += fmt.Sprintf("\n%d. %s\n", i+1, f.Title)
		text += fmt.Sprintf("   ID: %s (revisions: %s)\n", f.ID, strings.Join(f.Revisions, ", "))
		text += fmt.Sprintf("   Template: %s\n", f.Template)
		text += fmt.Sprintf("   Output key: %s\n", f.OutputKey)
		if f.RequestFlag != "" {
			text += fmt.Sprintf("   Request flag: %s\n", f.RequestFlag)
		}
		text += fmt.Sprintf("   Mapped: %d fields, %d lists\n", f.Fields, f.Lists)
	}
	return text
}

func (s *Server) formatFields(id string, fields []form.Field) string {
	text := fmt.Sprintf("Form fields for: %s\n", id)
	text += fmt.Sprintf("Total fields: %d\n", len(fields))

	grouped := form.GroupByType(fields)
	types := make([]string, 0, len(grouped))
	for t := range grouped {
		types = append(types, string(t))
	}
	sort.Strings(types)

	for _, t := range types {
		group := grouped[form.FieldType(t)]
		text += fmt.Sprintf("\n%s (%d):\n", t, len(group))
		for _, f := range group {
			text += "  • " + f.Name
			if f.Value != "" {
				text += fmt.Sprintf(" = %q", f.Value)
			}
			if len(f.Options) > 0 {
				text += fmt.Sprintf(" [%s]", strings.Join(f.Options, ", "))
			}
			if f.ReadOnly {
				text += " (read-only)"
			}
			text += "\n"
		}
	}
	return text
}

func (s *Server) formatDocument(doc *assembly.Document) string {
	text := fmt.Sprintf("Filled %s (%s@%s)\n", doc.Title, doc.Form, doc.Revision)
	text += fmt.Sprintf("Size: %d bytes\n", doc.Size)
	text += fmt.Sprintf("Assigned: %d fields\n", doc.Summary.Assigned)

	for _, skip := range doc.Fields.Skipped {
		switch skip.Reason {
		case resolver.SkipNoValue:
			continue
		default:
			text += fmt.Sprintf("  skipped %s: %s", skip.Attribute, skip.Reason)
			if skip.Detail != "" {
				text += " (" + skip.Detail + ")"
			}
			text += "\n"
		}
	}
	for _, msg := range doc.FieldErrors {
		text += "  error: " + msg + "\n"
	}
	return text
}

func (s *Server) formatBatch(result *assembly.BatchResult) string {
	text := fmt.Sprintf("%s\nBatch: %s\n", result.Message(), result.BatchID)
	if result.CaseNumber != "" {
		text += fmt.Sprintf("Case: %s\n", result.CaseNumber)
	}
	for _, f := range result.Errors {
		text += fmt.Sprintf("Failed %s [%s]: %s\n", f.Form, f.Kind, f.Message)
	}
	for _, w := range result.Warnings {
		text += "Warning: " + w + "\n"
	}
	return text
}

func (s *Server) formatServerInfo() string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	if s.config.TemplateDir != "" {
		text += fmt.Sprintf("📁 Template Directory: %s\n", s.config.TemplateDir)
	}
	if s.config.TemplateURL != "" {
		text += fmt.Sprintf("🌐 Template URL: %s\n", s.config.TemplateURL)
	}
	text += fmt.Sprintf("📂 Output Directory: %s\n", s.config.OutputDir)
	text += fmt.Sprintf("📏 Max Template Size: %d MB\n", s.config.MaxFileSize/(1024*1024))
	if stats, ok := s.assembler.TemplateStats(); ok {
		text += fmt.Sprintf("🗄️  Template Cache: %d/%d cached, %d hits, %d misses\n",
			stats.Size, stats.Capacity, stats.Hits, stats.Misses)
	}

	forms := s.assembler.Forms()
	text += fmt.Sprintf("\n📄 Registered Forms (%d):\n", len(forms))
	for _, f := range forms {
		text += fmt.Sprintf("   • %s - %s\n", f.ID, f.Title)
	}

	text += "\n🛠️  Available Tools:\n"
	for _, name := range descriptions.GetAllToolNames() {
		desc := descriptions.GetToolDescription(name)
		summary, _, _ := strings.Cut(desc, "\n")
		text += fmt.Sprintf("   • %s: %s\n", name, summary)
	}

	return text
}

// Run serves MCP over standard I/O until the client disconnects
func (s *Server) Run(_ context.Context) error {
	s.log.WithFields(logrus.Fields{
		"templates": s.config.TemplateDir,
		"forms":     len(s.assembler.Forms()),
	}).Debug("Starting casedocs MCP server in stdio mode")

	// Use the mark3labs/mcp-go server.ServeStdio function
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
