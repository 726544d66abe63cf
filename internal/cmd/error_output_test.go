package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/salmonumbrella/anaconda-cli/internal/client"
	ctxerrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
	"github.com/salmonumbrella/anaconda-cli/internal/iocontext"
	"github.com/salmonumbrella/anaconda-cli/internal/output"
)

func TestBuildErrorEnvelope_UserError(t *testing.T) {
	err := ctxerrors.NewUserError("invalid flag", "Use --help to see valid flags")
	env := buildErrorEnvelope(err)

	payload, ok := env["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error map, got %T", env["error"])
	}

	if payload["category"] != "user" {
		t.Errorf("category = %v, want user", payload["category"])
	}
	if payload["suggestion"] != "Use --help to see valid flags" {
		t.Errorf("suggestion = %v, want %q", payload["suggestion"], "Use --help to see valid flags")
	}
}

func TestBuildErrorEnvelope_ValidationError(t *testing.T) {
	err := &ctxerrors.ValidationError{Field: "org", Message: "required"}
	env := buildErrorEnvelope(err)

	payload, ok := env["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error map, got %T", env["error"])
	}

	if payload["category"] != "user" {
		t.Errorf("category = %v, want user", payload["category"])
	}
	if payload["type"] != "validation" {
		t.Errorf("type = %v, want validation", payload["type"])
	}
	if payload["field"] != "org" {
		t.Errorf("field = %v, want org", payload["field"])
	}
}

func TestBuildErrorEnvelope_SystemError(t *testing.T) {
	err := errors.New("boom")
	env := buildErrorEnvelope(err)

	payload, ok := env["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error map, got %T", env["error"])
	}

	if payload["category"] != "system" {
		t.Errorf("category = %v, want system", payload["category"])
	}
	if _, ok := payload["suggestion"]; ok {
		t.Errorf("expected no suggestion for system error")
	}
}

func TestBuildErrorEnvelope_APIError(t *testing.T) {
	err := &client.APIError{StatusCode: 429, Code: "rate_limited", Message: "slow down", RetryAfter: 30 * time.Second}
	env := buildErrorEnvelope(err)

	payload := env["error"].(map[string]interface{})
	if payload["type"] != "api" {
		t.Errorf("type = %v, want api", payload["type"])
	}
	if payload["status"] != 429 {
		t.Errorf("status = %v, want 429", payload["status"])
	}
	if payload["code"] != "rate_limited" {
		t.Errorf("code = %v, want rate_limited", payload["code"])
	}
	if payload["message"] != "slow down" {
		t.Errorf("message = %v, want slow down", payload["message"])
	}
	if payload["retry_after_seconds"] != 30 {
		t.Errorf("retry_after_seconds = %v, want 30", payload["retry_after_seconds"])
	}
}

func TestBuildErrorEnvelope_LoginRequired(t *testing.T) {
	err := ctxerrors.NewLoginRequiredError(401)
	env := buildErrorEnvelope(err)

	payload := env["error"].(map[string]interface{})
	if payload["category"] != "user" {
		t.Errorf("category = %v, want user", payload["category"])
	}
	suggestion, _ := payload["suggestion"].(string)
	if !strings.Contains(suggestion, "anc login") {
		t.Errorf("suggestion = %q, want login hint", suggestion)
	}
}

func TestBuildErrorEnvelope_AuthenticationError(t *testing.T) {
	err := ctxerrors.NewAuthenticationError("code exchange failed")
	env := buildErrorEnvelope(err)

	payload := env["error"].(map[string]interface{})
	if payload["type"] != "auth" {
		t.Errorf("type = %v, want auth", payload["type"])
	}
	if payload["category"] != "user" {
		t.Errorf("category = %v, want user", payload["category"])
	}
}

func TestBuildErrorEnvelope_ContextualError(t *testing.T) {
	err := ctxerrors.WrapContext("GET", "https://anaconda.cloud/api/account", 502, errors.New("bad gateway"))
	env := buildErrorEnvelope(err)

	payload := env["error"].(map[string]interface{})
	if payload["method"] != "GET" {
		t.Errorf("method = %v, want GET", payload["method"])
	}
	if payload["url"] != "https://anaconda.cloud/api/account" {
		t.Errorf("url = %v", payload["url"])
	}
	if payload["status"] != 502 {
		t.Errorf("status = %v, want 502", payload["status"])
	}
}

func TestEffectiveErrorFormat(t *testing.T) {
	tests := []struct {
		name        string
		errorFormat string
		output      output.Format
		want        string
	}{
		{"auto with json output", "auto", output.FormatJSON, "json"},
		{"auto with ndjson output", "auto", output.FormatNDJSON, "json"},
		{"auto with yaml output", "auto", output.FormatYAML, "yaml"},
		{"auto with text output", "auto", output.FormatText, "text"},
		{"unset with table output", "", output.FormatTable, "text"},
		{"explicit text with json output", "text", output.FormatJSON, "text"},
		{"explicit json with text output", "json", output.FormatText, "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithErrorFormat(context.Background(), tt.errorFormat)
			ctx = output.WithFormat(ctx, tt.output)
			if got := effectiveErrorFormat(ctx); got != tt.want {
				t.Errorf("effectiveErrorFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateErrorFormat(t *testing.T) {
	for _, valid := range []string{"", "auto", "text", "json", "yaml", "JSON "} {
		if err := validateErrorFormat(valid); err != nil {
			t.Errorf("validateErrorFormat(%q) = %v, want nil", valid, err)
		}
	}
	if err := validateErrorFormat("xml"); err == nil {
		t.Error("validateErrorFormat(xml) should fail")
	}
}

func TestPrintCommandError_JSONEnvelope(t *testing.T) {
	var stderr bytes.Buffer
	ctx := iocontext.WithIO(context.Background(), &bytes.Buffer{}, &stderr)
	ctx = output.WithFormat(ctx, output.FormatJSON)
	ctx = WithErrorFormat(ctx, "auto")

	printCommandError(ctx, ctxerrors.NewUserError("bad input", "fix it"))

	var payload map[string]map[string]interface{}
	if err := json.Unmarshal(stderr.Bytes(), &payload); err != nil {
		t.Fatalf("stderr is not valid JSON: %v\noutput: %s", err, stderr.String())
	}
	if payload["error"]["message"] != "bad input" {
		t.Errorf("message = %v, want bad input", payload["error"]["message"])
	}
	if payload["error"]["suggestion"] != "fix it" {
		t.Errorf("suggestion = %v, want fix it", payload["error"]["suggestion"])
	}
}

func TestPrintCommandError_TextHint(t *testing.T) {
	var stderr bytes.Buffer
	ctx := iocontext.WithIO(context.Background(), &bytes.Buffer{}, &stderr)
	ctx = output.WithFormat(ctx, output.FormatText)

	printCommandError(ctx, ctxerrors.NewUserError("bad input", "fix it"))

	got := stderr.String()
	if !strings.Contains(got, "bad input") {
		t.Errorf("stderr missing error message: %q", got)
	}
	if !strings.Contains(got, "Hint: fix it") {
		t.Errorf("stderr missing hint: %q", got)
	}
}

func TestPrintCommandError_Nil(t *testing.T) {
	var stderr bytes.Buffer
	ctx := iocontext.WithIO(context.Background(), &bytes.Buffer{}, &stderr)

	printCommandError(ctx, nil)

	if stderr.Len() != 0 {
		t.Errorf("expected no output for nil error, got %q", stderr.String())
	}
}
