// Package mcp registers the reconciliation tools on an MCP server so
// agent clients can drive filtering, matching and aggregation over
// stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/pkg/kit"
	"github.com/ngxthien/riskrecon/internal/config"
	"github.com/ngxthien/riskrecon/internal/export"
	"github.com/ngxthien/riskrecon/internal/recon"
	"github.com/ngxthien/riskrecon/internal/store"
	"github.com/ngxthien/riskrecon/pkg/audit"
)

// NewServer creates an MCPServer with all core reconciliation tools registered.
func NewServer(cfg *config.Config, auditLog audit.Logger) *server.MCPServer {
	srv := server.NewMCPServer(
		"riskrecon",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	registerDataSummary(srv, cfg)
	registerFilterPosts(srv, cfg, auditLog)
	registerMatchHistory(srv, cfg, auditLog)
	registerAggregateUsers(srv, cfg)
	registerSavePost(srv, cfg, auditLog)

	return srv
}

// referenceTable prefers the filtered subset over the canonical table.
func referenceTable(cfg *config.Config) (*store.Table, error) {
	if table, err := store.LoadPosts(cfg.Data.FilteredPostsPath()); err == nil {
		return table, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return store.LoadPosts(cfg.Data.MainPostsPath())
}

// --- data_summary ---

func registerDataSummary(srv *server.MCPServer, cfg *config.Config) {
	schema, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	})
	tool := mcp.NewToolWithRawSchema("data_summary", "Summarize the post table, filtered subset and history store", schema)

	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, request any) (any, error) {
		summary := map[string]any{}
		if table, err := store.LoadPosts(cfg.Data.MainPostsPath()); err == nil {
			summary["main_posts"] = len(table.Posts)
			summary["symptom_groups"] = table.SymptomGroups()
		} else {
			summary["main_posts"] = 0
		}
		if table, err := store.LoadPosts(cfg.Data.FilteredPostsPath()); err == nil {
			summary["filtered_posts"] = len(table.Posts)
		}
		if history, err := store.LoadHistory(cfg.Data.HistoryPath()); err == nil {
			summary["history_users"] = len(history)
		} else {
			summary["history_users"] = 0
		}
		return summary, nil
	}, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &struct{}{}}, nil
	})
}

// --- filter_posts ---

func registerFilterPosts(srv *server.MCPServer, cfg *config.Config, auditLog audit.Logger) {
	var endpoint kit.Endpoint = func(ctx context.Context, request any) (any, error) {
		r := request.(*filterPostsReq)
		group := strings.TrimSpace(r.SymptomGroup)
		if group == "" {
			return nil, fmt.Errorf("symptom_group is required")
		}
		table, err := store.LoadPosts(cfg.Data.MainPostsPath())
		if err != nil {
			return nil, err
		}
		subset := table.FilterBySymptomGroup(group)
		if len(subset.Posts) == 0 {
			return recon.Warning("no posts match symptom group %q; available groups: %s",
				group, strings.Join(table.SymptomGroups(), ", ")), nil
		}
		if err := store.WritePosts(cfg.Data.FilteredPostsPath(), subset); err != nil {
			return nil, err
		}
		return recon.Successf(map[string]any{
			"rows":          len(subset.Posts),
			"symptom_group": group,
		}, "filtered %d posts for %q", len(subset.Posts), group), nil
	}
	if auditLog != nil {
		endpoint = audit.Middleware(auditLog, "filter_posts")(endpoint)
	}

	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"symptom_group": map[string]string{"type": "string", "description": "Symptom group to select"},
		},
		"required": []string{"symptom_group"},
	})
	tool := mcp.NewToolWithRawSchema("filter_posts", "Filter the post table by symptom group and persist the subset", schema)

	kit.RegisterMCPTool(srv, tool, endpoint, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		return &kit.MCPDecodeResult{Request: &filterPostsReq{
			SymptomGroup: stringArg(args, "symptom_group"),
		}}, nil
	})
}

type filterPostsReq struct {
	SymptomGroup string `json:"symptom_group"`
}

// --- match_history ---

func registerMatchHistory(srv *server.MCPServer, cfg *config.Config, auditLog audit.Logger) {
	var endpoint kit.Endpoint = func(ctx context.Context, request any) (any, error) {
		r := request.(*matchHistoryReq)
		usernames := r.Usernames
		if len(usernames) == 0 {
			table, err := referenceTable(cfg)
			if err != nil {
				return nil, err
			}
			usernames = table.Usernames()
			if max := cfg.Crawl.MaxUsers; max > 0 && len(usernames) > max {
				usernames = usernames[:max]
			}
		}
		history, err := store.LoadHistory(cfg.Data.HistoryPath())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		result, outcome := recon.MatchHistories(usernames, history)
		if outcome.Status != recon.StatusSuccess {
			return outcome, nil
		}
		if err := export.WriteUserHistory(cfg.Data.UserHistoryPath(), result.Flattened); err != nil {
			return nil, err
		}
		outcome.Data = map[string]any{
			"found_usernames": result.FoundIDs,
			"not_found":       result.NotFound,
			"rows_written":    len(result.Flattened),
		}
		return outcome, nil
	}
	if auditLog != nil {
		endpoint = audit.Middleware(auditLog, "match_history")(endpoint)
	}

	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"usernames": map[string]any{
				"type":        "array",
				"items":       map[string]string{"type": "string"},
				"description": "Usernames to match; defaults to the reference table's first users",
			},
		},
	})
	tool := mcp.NewToolWithRawSchema("match_history", "Match usernames against the history store and rewrite the normalized export", schema)

	kit.RegisterMCPTool(srv, tool, endpoint, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		r := &matchHistoryReq{}
		if names, ok := args["usernames"].([]any); ok {
			for _, n := range names {
				if s, ok := n.(string); ok {
					r.Usernames = append(r.Usernames, s)
				}
			}
		}
		return &kit.MCPDecodeResult{Request: r}, nil
	})
}

type matchHistoryReq struct {
	Usernames []string `json:"usernames"`
}

// --- aggregate_users ---

func registerAggregateUsers(srv *server.MCPServer, cfg *config.Config) {
	schema, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	})
	tool := mcp.NewToolWithRawSchema("aggregate_users", "Per-user risk aggregates over the reference table and history store", schema)

	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, request any) (any, error) {
		table, err := referenceTable(cfg)
		if err != nil {
			return nil, err
		}
		history, err := store.LoadHistory(cfg.Data.HistoryPath())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		aggregates := recon.AggregateUsers(table, history)
		return map[string]any{"users": aggregates, "count": len(aggregates)}, nil
	}, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &struct{}{}}, nil
	})
}

// --- save_post ---

func registerSavePost(srv *server.MCPServer, cfg *config.Config, auditLog audit.Logger) {
	var endpoint kit.Endpoint = func(ctx context.Context, request any) (any, error) {
		r := request.(*savePostReq)
		if strings.TrimSpace(r.Content) == "" || strings.TrimSpace(r.Username) == "" {
			return nil, fmt.Errorf("content and username are required")
		}
		saved, err := store.NewPosts(cfg.Data.MainPostsPath()).Append(store.Post{
			Text:         r.Content,
			SymptomGroup: r.SymptomGroup,
			Username:     r.Username,
			Timestamp:    r.Timestamp,
		})
		if err != nil {
			return nil, err
		}
		return recon.Successf(saved, "post %d saved", saved.ID), nil
	}
	if auditLog != nil {
		endpoint = audit.Middleware(auditLog, "save_post")(endpoint)
	}

	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content":       map[string]string{"type": "string", "description": "Post text"},
			"username":      map[string]string{"type": "string", "description": "Author username"},
			"symptom_group": map[string]string{"type": "string", "description": "Symptom group"},
			"timestamp":     map[string]string{"type": "string", "description": "Optional timestamp; defaults to now"},
		},
		"required": []string{"content", "username"},
	})
	tool := mcp.NewToolWithRawSchema("save_post", "Append a post to the canonical table", schema)

	kit.RegisterMCPTool(srv, tool, endpoint, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		args := req.GetArguments()
		return &kit.MCPDecodeResult{Request: &savePostReq{
			Content:      stringArg(args, "content"),
			Username:     stringArg(args, "username"),
			SymptomGroup: stringArg(args, "symptom_group"),
			Timestamp:    stringArg(args, "timestamp"),
		}}, nil
	})
}

type savePostReq struct {
	Content      string `json:"content"`
	Username     string `json:"username"`
	SymptomGroup string `json:"symptom_group"`
	Timestamp    string `json:"timestamp"`
}

// --- helpers ---

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
