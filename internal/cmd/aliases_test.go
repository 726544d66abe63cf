package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
)

func newAliasTestRoot(t *testing.T) *App {
	t.Helper()
	return &App{
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	}
}

func TestRootHiddenFlagAliases(t *testing.T) {
	root := newAliasTestRoot(t).RootCommand()

	tests := []struct {
		base  string
		alias string
	}{
		{base: "output", alias: "out"},
		{base: "query", alias: "qr"},
	}

	for _, tt := range tests {
		t.Run(tt.base+"->"+tt.alias, func(t *testing.T) {
			base := root.PersistentFlags().Lookup(tt.base)
			if base == nil {
				t.Fatalf("base flag --%s not found", tt.base)
			}
			alias := root.PersistentFlags().Lookup(tt.alias)
			if alias == nil {
				t.Fatalf("alias flag --%s not found", tt.alias)
			}
			if !alias.Hidden {
				t.Errorf("alias flag --%s should be hidden", tt.alias)
			}
			if alias.Value.Type() != base.Value.Type() {
				t.Errorf("alias --%s type = %q, want %q", tt.alias, alias.Value.Type(), base.Value.Type())
			}
		})
	}

	// -j is provided by BoolP (native shorthand), not a flagAlias.
	if root.PersistentFlags().ShorthandLookup("j") == nil {
		t.Fatal("-j shorthand not found on --json flag")
	}
	if err := root.PersistentFlags().Set("json", "true"); err != nil {
		t.Fatalf("set --json: %v", err)
	}
	jsonEnabled, _ := root.PersistentFlags().GetBool("json")
	if !jsonEnabled {
		t.Error("--json should be enabled")
	}
	if err := root.PersistentFlags().Set("json", "false"); err != nil {
		t.Fatalf("set --json: %v", err)
	}
	jsonAliasEnabled, _ := root.PersistentFlags().GetBool("j")
	if jsonAliasEnabled {
		t.Error("--json should update --j value")
	}

	if err := root.PersistentFlags().Set("out", "yaml"); err != nil {
		t.Fatalf("set --out: %v", err)
	}
	outputVal, _ := root.PersistentFlags().GetString("output")
	if outputVal != "yaml" {
		t.Errorf("--out should set --output, got %q", outputVal)
	}

	if err := root.PersistentFlags().Set("qr", ".id"); err != nil {
		t.Fatalf("set --qr: %v", err)
	}
	queryVal, _ := root.PersistentFlags().GetString("query")
	if queryVal != ".id" {
		t.Errorf("--qr should set --query, got %q", queryVal)
	}

	jqFlag := root.PersistentFlags().Lookup("jq")
	if jqFlag == nil {
		t.Fatal("expected --jq to remain registered")
	}
}

func TestCanonicalVerbAliases(t *testing.T) {
	root := newAliasTestRoot(t).RootCommand()

	tests := []struct {
		name     string
		args     []string
		wantName string
	}{
		{name: "token list -> ls", args: []string{"token", "ls", "--help"}, wantName: "list"},
		{name: "token install -> add", args: []string{"token", "add", "--help"}, wantName: "install"},
		{name: "token uninstall -> rm", args: []string{"token", "rm", "--help"}, wantName: "uninstall"},
		{name: "token uninstall -> remove", args: []string{"token", "remove", "--help"}, wantName: "uninstall"},
		{name: "token verify -> check", args: []string{"token", "check", "--help"}, wantName: "verify"},
		{name: "api-key create -> mk", args: []string{"api-key", "mk", "--help"}, wantName: "create"},
		{name: "api-key create -> cr", args: []string{"api-key", "cr", "--help"}, wantName: "create"},
		{name: "api-key list -> ls", args: []string{"api-key", "ls", "--help"}, wantName: "list"},
		{name: "api-key verify -> check", args: []string{"api-key", "check", "--help"}, wantName: "verify"},
		{name: "version compare -> cmp", args: []string{"version", "cmp", "--help"}, wantName: "compare"},
		{name: "vscode configure -> setup", args: []string{"vscode", "setup", "--help"}, wantName: "configure"},
		{name: "config get -> g", args: []string{"config", "g", "--help"}, wantName: "get"},
		{name: "config list -> ls", args: []string{"config", "ls", "--help"}, wantName: "list"},
		{name: "config list -> show", args: []string{"config", "show", "--help"}, wantName: "list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, err := root.Find(tt.args)
			if err != nil {
				t.Fatalf("root.Find(%v) error: %v", tt.args, err)
			}
			if cmd == nil {
				t.Fatalf("root.Find(%v) returned nil command", tt.args)
			}
			if cmd.Name() != tt.wantName {
				t.Errorf("root.Find(%v) resolved to %q, want %q", tt.args, cmd.Name(), tt.wantName)
			}
		})
	}
}

func TestCanonicalVerbAliasesAvoidSiblingConflicts(t *testing.T) {
	root := newAliasTestRoot(t).RootCommand()

	// config list answers to "show", which maps onto the same canonical rule
	// as get. The g alias must stay with config get.
	listCmd, _, err := root.Find([]string{"config", "list", "--help"})
	if err != nil {
		t.Fatalf("find config list: %v", err)
	}
	if hasAlias(listCmd, "g") {
		t.Error("config list should not get alias g because config get already owns g")
	}

	getCmd, _, err := root.Find([]string{"config", "get", "--help"})
	if err != nil {
		t.Fatalf("find config get: %v", err)
	}
	if !hasAlias(getCmd, "g") {
		t.Error("config get should keep alias g")
	}

	// uninstall claims rm before any generated alias could.
	uninstallCmd, _, err := root.Find([]string{"token", "uninstall", "--help"})
	if err != nil {
		t.Fatalf("find token uninstall: %v", err)
	}
	if !hasAlias(uninstallCmd, "rm") {
		t.Error("token uninstall should have alias rm")
	}
}

func hasAlias(cmd *cobra.Command, alias string) bool {
	for _, existing := range cmd.Aliases {
		if existing == alias {
			return true
		}
	}
	return false
}
