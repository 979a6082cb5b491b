package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	SetVersion("9.9.9")
	defer SetVersion("dev")

	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	if !strings.Contains(buf.String(), "rulesync version 9.9.9") {
		t.Errorf("Unexpected version output: %q", buf.String())
	}
}
