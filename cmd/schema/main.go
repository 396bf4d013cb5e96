package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	server "quickdraw/server"
)

// Generates the JSON schema for the polling wire payloads so client teams can
// validate against the server contract without reading Go source.
func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema := buildSchema()

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

// wireContract groups every payload the HTTP API serves so a single reflection
// pass produces one document with shared definitions.
type wireContract struct {
	WorldJoin     server.WorldJoinResponse     `json:"world_join"`
	WorldCounts   server.WorldCountsResponse   `json:"world_counts"`
	WhoAmI        server.WhoAmIResponse        `json:"whoami"`
	Queue         server.QueueResponse         `json:"queue"`
	Start         server.StartPayload          `json:"start"`
	DuelPull      server.DuelPullResponse      `json:"duel_pull"`
	Hit           server.HitResponse           `json:"hit"`
	Down          server.DownResponse          `json:"down"`
	InviteCreated server.InviteCreatedResponse `json:"invite_created"`
	InviteResolve server.InviteResolveResponse `json:"invite_resolve"`
	Notifications server.NotificationsResponse `json:"notifications"`
	Friends       server.FriendsResponse       `json:"friends"`
	Search        server.SearchResponse        `json:"search"`
	Ack           server.AckResponse           `json:"ack"`
	Error         server.ErrorResponse         `json:"error"`
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(wireContract))
	schema.Title = "Quickdraw Wire Contract"
	schema.Description = "Validates every payload served by the polling duel API."
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
