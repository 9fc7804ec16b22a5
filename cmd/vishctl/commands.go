package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/ashureev/vish/internal/agent"
	"github.com/ashureev/vish/internal/health"
	"github.com/ashureev/vish/internal/knowledge"
	"github.com/ashureev/vish/internal/mcp"
	"github.com/ashureev/vish/internal/risk"
)

var errRemoteUnavailable = errors.New("knowledge service unavailable")

// connect returns a connected knowledge service client.
func (o *rootOptions) connect(cmd *cobra.Command) (*mcp.Client, error) {
	client := mcp.NewClient(o.remoteURL, mcp.WithCallTimeout(o.timeout), mcp.WithLogger(o.logger(cmd)))
	if !client.Connect(cmd.Context()) {
		return nil, fmt.Errorf("%w at %s", errRemoteUnavailable, o.remoteURL)
	}
	return client, nil
}

// assessor builds a risk assessor, delegating to the knowledge service when
// useRemote is set and it answers.
func (o *rootOptions) assessor(cmd *cobra.Command, useRemote bool) *risk.Assessor {
	opts := []risk.Option{risk.WithLogger(o.logger(cmd)), risk.WithTimeout(o.timeout)}
	if useRemote {
		client, err := o.connect(cmd)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v, using local keywords\n", err)
		} else {
			opts = append(opts, risk.WithRemote(mcp.NewRemoteAssessor(client)))
		}
	}
	return risk.NewAssessor(opts...)
}

func newAssessCmd(opts *rootOptions) *cobra.Command {
	var useRemote bool
	cmd := &cobra.Command{
		Use:   "assess <message>",
		Short: "Classify a message's crisis risk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := opts.assessor(cmd, useRemote).Assess(cmd.Context(), strings.Join(args, " "))
			return printJSON(cmd.OutOrStdout(), a)
		},
	}
	cmd.Flags().BoolVar(&useRemote, "use-remote", false, "ask the knowledge service before falling back to local keywords")
	return cmd
}

type routeStep struct {
	Message   string        `json:"message"`
	Agent     string        `json:"agent"`
	Role      string        `json:"role"`
	Reason    string        `json:"reason"`
	RiskLevel string        `json:"riskLevel"`
	Switched  bool          `json:"switched"`
	Advice    agent.Handoff `json:"advice"`
}

func newRouteCmd(opts *rootOptions) *cobra.Command {
	var useRemote bool
	cmd := &cobra.Command{
		Use:   "route <message>...",
		Short: "Route messages through one session and show each persona choice",
		Long:  "Each argument is one user message. Messages share a session, so crisis holds and hand-offs show up as they would in a conversation.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := agent.DefaultCatalog()
			if err != nil {
				return err
			}
			router := agent.NewRouter(catalog, opts.assessor(cmd, useRemote),
				agent.WithSessionID("vishctl"), agent.WithLogger(opts.logger(cmd)))

			steps := make([]routeStep, 0, len(args))
			for _, msg := range args {
				sel := router.SelectAgent(cmd.Context(), msg)
				steps = append(steps, routeStep{
					Message:   msg,
					Agent:     sel.Profile.Name,
					Role:      sel.Profile.Role,
					Reason:    sel.Reason,
					RiskLevel: string(sel.Assessment.Level),
					Switched:  sel.Switched,
					Advice:    router.ShouldHandoff(msg, sel.Profile.Role),
				})
			}
			return printJSON(cmd.OutOrStdout(), steps)
		},
	}
	cmd.Flags().BoolVar(&useRemote, "use-remote", false, "assess risk with the knowledge service")
	return cmd
}

func newRetrieveCmd(opts *rootOptions) *cobra.Command {
	var (
		dir     string
		docsDir string
		topK    int
	)
	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Score the reference corpus against a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeOpts := []knowledge.StoreOption{knowledge.WithStoreLogger(opts.logger(cmd))}
			if docsDir != "" {
				docs, err := knowledge.NewDocuments(docsDir)
				if err != nil {
					return err
				}
				storeOpts = append(storeOpts, knowledge.WithDocuments(docs))
			}
			store := knowledge.NewStore(storeOpts...)
			if err := store.LoadStatic(cmd.Context(), dir); err != nil {
				return fmt.Errorf("load %s: %w", dir, err)
			}
			results := store.Retrieve(cmd.Context(), strings.Join(args, " "), topK, docsDir != "")
			if results == nil {
				results = []knowledge.Result{}
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", envOr("KNOWLEDGE_DIR", "./data/mental_health_docs"), "static corpus directory")
	cmd.Flags().StringVar(&docsDir, "docs", "", "user documents directory to include")
	cmd.Flags().IntVar(&topK, "top-k", knowledge.DefaultTopK, "number of results")
	return cmd
}

func newToolsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List or call knowledge service tools",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the tools the knowledge service advertises",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			tools, err := client.ListTools(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, t := range tools {
				fmt.Fprintf(w, "%-30s %s\n", t.Name, t.Description)
			}
			return nil
		},
	}

	var rawArgs string
	call := &cobra.Command{
		Use:   "call <tool>",
		Short: "Call a tool with JSON arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !mcp.IsKnownTool(args[0]) {
				return fmt.Errorf("%w: %s (known: %s)", mcp.ErrUnknownTool, args[0], strings.Join(mcp.KnownTools, ", "))
			}
			var toolArgs map[string]any
			if rawArgs != "" {
				if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
					return fmt.Errorf("parse --args: %w", err)
				}
			}
			client, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			result, err := client.InvokeTool(cmd.Context(), args[0], toolArgs)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	call.Flags().StringVar(&rawArgs, "args", "", `tool arguments as a JSON object, e.g. '{"query":"sleep"}'`)

	cmd.AddCommand(list, call)
	return cmd
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	var (
		addr    string
		service string
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the server's gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			resp, err := health.Check(ctx, addr, service)
			if err != nil {
				return err
			}
			out, err := protojson.MarshalOptions{Multiline: true, EmitUnpopulated: true}.Marshal(resp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:"+envOr("GRPC_HEALTH_PORT", "3002"), "gRPC health address")
	cmd.Flags().StringVar(&service, "service", health.KnowledgeService, `service name, "" for the whole server`)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
