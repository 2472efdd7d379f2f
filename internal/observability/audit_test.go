package observability

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetAuditLogger(t *testing.T) {
	t.Cleanup(func() {
		auditMu.Lock()
		inst := auditInst
		auditInst = nil
		auditMu.Unlock()
		if inst != nil {
			_ = inst.Close()
		}
	})
}

func TestInitAuditLoggerWritesJSONLines(t *testing.T) {
	resetAuditLogger(t)
	path := filepath.Join(t.TempDir(), "nested", "audit.log")

	if err := InitAuditLogger(path); err != nil {
		t.Fatalf("InitAuditLogger failed: %v", err)
	}

	RecordSecurityAudit(context.Background(), "http_auth", "127.0.0.1", "failure", map[string]interface{}{
		"path": "/rpc",
	})
	RecordConfigAudit(context.Background(), "config_reload", "watcher", nil)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 audit lines, got %d: %q", len(lines), data)
	}

	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("Audit line is not JSON: %v", err)
	}
	if first["type"] != "security" || first["action"] != "http_auth" || first["status"] != "failure" {
		t.Errorf("Unexpected security audit entry: %v", first)
	}
	if meta, ok := first["metadata"].(map[string]interface{}); !ok || meta["path"] != "/rpc" {
		t.Errorf("Expected metadata path, got %v", first["metadata"])
	}

	var second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("Audit line is not JSON: %v", err)
	}
	if second["type"] != "config" || second["status"] != "success" {
		t.Errorf("Unexpected config audit entry: %v", second)
	}
}

func TestAuditLoggerCloseIsIdempotent(t *testing.T) {
	resetAuditLogger(t)
	path := filepath.Join(t.TempDir(), "audit.log")

	if err := InitAuditLogger(path); err != nil {
		t.Fatalf("InitAuditLogger failed: %v", err)
	}

	a := GetAuditLogger()
	if err := a.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestGetAuditLoggerDefaultsToStderr(t *testing.T) {
	resetAuditLogger(t)

	a := GetAuditLogger()
	if a == nil {
		t.Fatal("GetAuditLogger returned nil")
	}
	if a.file != nil {
		t.Error("Default audit logger must not own a file")
	}
}
