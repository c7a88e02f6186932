package guard

import (
	"context"
	"testing"

	"github.com/ppiankov/guardchain/internal/model"
)

func TestFuncAdapter(t *testing.T) {
	g := New("echo", func(ctx context.Context, data any, rc *model.Context) (model.Decision, error) {
		return model.Allow(data, model.WithAuditID(rc.AuditID)), nil
	})

	if g.Name() != "echo" {
		t.Errorf("expected name echo, got %s", g.Name())
	}

	rc := model.NewContext()
	d, err := g.Check(context.Background(), "payload", rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Allowed || d.Output != "payload" {
		t.Errorf("expected allow passthrough, got %+v", d)
	}
	if d.AuditID != rc.AuditID {
		t.Error("expected decision correlated to context audit id")
	}
}
