package cmd

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/salmonumbrella/anaconda-cli/internal/auth"
	clierrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
)

func TestAPIKeyCommand_TextModePrintsBareKey(t *testing.T) {
	setupAPITest(t)
	t.Setenv(auth.EnvVarName, "test-key-abc")

	stdout, stderr, err := runRootCmd(t, "api-key", "-o", "text")
	if err != nil {
		t.Fatalf("api-key: %v\nstderr: %s", err, stderr)
	}
	// Bare value plus newline so `KEY=$(anc api-key)` works.
	if stdout != "test-key-abc\n" {
		t.Errorf("stdout = %q, want the key alone", stdout)
	}
}

func TestAPIKeyCommand_JSON(t *testing.T) {
	setupAPITest(t)
	t.Setenv(auth.EnvVarName, "test-key-abc")

	stdout, stderr, err := runRootCmd(t, "api-key", "-o", "json")
	if err != nil {
		t.Fatalf("api-key -o json: %v\nstderr: %s", err, stderr)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(stdout), &payload); err != nil {
		t.Fatalf("output is not JSON: %v\noutput: %s", err, stdout)
	}
	if payload["api_key"] != "test-key-abc" {
		t.Errorf("api_key = %v", payload["api_key"])
	}
}

func TestAPIKeyCommand_NotSignedIn(t *testing.T) {
	setupAPITest(t)
	t.Setenv(auth.EnvVarName, "")

	_, _, err := runRootCmd(t, "api-key")
	if err == nil {
		t.Fatal("expected error with no stored key")
	}
	if !clierrors.IsAuthError(err) {
		t.Errorf("expected auth error, got %T: %v", err, err)
	}
}

func TestAPIKeyList(t *testing.T) {
	ms := setupAPITest(t)
	ms.HandleJSON("GET", "/api/iam/api-keys", http.StatusOK, map[string]interface{}{
		"items": []map[string]interface{}{
			{"id": "key-1", "name": "ci", "scopes": []string{"cloud:read"}},
			{"id": "key-2", "name": "laptop"},
		},
	})

	stdout, stderr, err := runRootCmd(t, "api-key", "list", "-o", "json")
	if err != nil {
		t.Fatalf("api-key list: %v\nstderr: %s", err, stderr)
	}

	var listing struct {
		Items []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	}
	if err := json.Unmarshal([]byte(stdout), &listing); err != nil {
		t.Fatalf("output is not JSON: %v\noutput: %s", err, stdout)
	}
	if len(listing.Items) != 2 {
		t.Fatalf("items = %#v, want two keys", listing.Items)
	}
	if listing.Items[0].ID != "key-1" || listing.Items[1].Name != "laptop" {
		t.Errorf("items = %#v", listing.Items)
	}
}

func TestAPIKeyCreate(t *testing.T) {
	ms := setupAPITest(t)

	var gotScopes []string
	ms.Handle("POST", "/api/iam/api-keys", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Scopes []string `json:"scopes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode create request: %v", err)
		}
		gotScopes = req.Scopes

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"key-9","api_key":"brand-new-key","scopes":["cloud:read"]}`))
	})

	stdout, stderr, err := runRootCmd(t, "api-key", "create", "--scopes", "cloud:read", "-o", "json")
	if err != nil {
		t.Fatalf("api-key create: %v\nstderr: %s", err, stderr)
	}
	if len(gotScopes) != 1 || gotScopes[0] != "cloud:read" {
		t.Errorf("request scopes = %v, want [cloud:read]", gotScopes)
	}

	var created struct {
		ID     string `json:"id"`
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal([]byte(stdout), &created); err != nil {
		t.Fatalf("output is not JSON: %v\noutput: %s", err, stdout)
	}
	if created.ID != "key-9" || created.APIKey != "brand-new-key" {
		t.Errorf("created = %+v", created)
	}
}

func TestAPIKeyCreate_ServerRejects(t *testing.T) {
	ms := setupAPITest(t)
	ms.HandleError("POST", "/api/iam/api-keys", http.StatusBadRequest, "invalid_scopes", "unknown scope")

	_, _, err := runRootCmd(t, "api-key", "create", "--scopes", "bogus:scope")
	if err == nil {
		t.Fatal("expected error for rejected create")
	}
	if !strings.Contains(err.Error(), "failed to create API key") {
		t.Errorf("error = %q", err.Error())
	}
}
