package docs

import (
	"context"

	"github.com/voltr/surge/internal/tool"
)

// RegisterTools registers the knowledge base tools. All read-only.
func RegisterTools(r *tool.Registry, l *Library) error {
	tools := []struct {
		decl    tool.Declaration
		handler tool.Handler
	}{
		{
			decl: tool.Declaration{
				Name:        "list_documents",
				Description: "List the documents available in the operator knowledge base.",
				Kind:        tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				docs, err := l.List()
				if err != nil {
					return nil, err
				}
				out := make([]map[string]any, 0, len(docs))
				for _, d := range docs {
					out = append(out, map[string]any{"name": d.Name, "title": d.Title})
				}
				return map[string]any{"documents": out, "count": len(out)}, nil
			},
		},
		{
			decl: tool.Declaration{
				Name:        "search_documents",
				Description: "Search the knowledge base for documents matching all query terms, ranked by relevance.",
				Params: []tool.Param{
					{Name: "query", Type: "string", Description: "Search terms", Required: true},
					{Name: "limit", Type: "integer", Description: "Maximum matches to return (default 5)"},
				},
				Kind: tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				query := tool.Str(args, "query", "")
				limit := int(tool.Int(args, "limit", 5))

				matches, err := l.Search(query, limit)
				if err != nil {
					return nil, err
				}
				out := make([]map[string]any, 0, len(matches))
				for _, m := range matches {
					out = append(out, map[string]any{
						"name":    m.Name,
						"title":   m.Title,
						"score":   m.Score,
						"snippet": m.Snippet,
					})
				}
				return map[string]any{"query": query, "matches": out}, nil
			},
		},
		{
			decl: tool.Declaration{
				Name:        "get_document",
				Description: "Read the full markdown content of one knowledge base document.",
				Params: []tool.Param{
					{Name: "name", Type: "string", Description: "Document name as returned by list_documents", Required: true},
				},
				Kind: tool.ReadOnly,
			},
			handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				name := tool.Str(args, "name", "")
				content, err := l.Get(name)
				if err != nil {
					return nil, err
				}
				return map[string]any{"name": name, "content": content}, nil
			},
		},
	}

	for _, t := range tools {
		if err := r.Register(t.decl, t.handler); err != nil {
			return err
		}
	}
	return nil
}
