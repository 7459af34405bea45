//go:build integration

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JonMunkholm/ledgerimport/internal/config"
	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/store"
)

func TestPostgresExecutor(t *testing.T) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "imports",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432")
	pool, err := store.Connect(ctx, config.DatabaseConfig{
		URL:      fmt.Sprintf("postgres://test:test@%s:%s/imports?sslmode=disable", host, port.Port()),
		MaxConns: 2,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := store.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	exec := NewPostgresExecutor(pool)
	create := core.Command{Entity: core.EntityClients, Action: core.ActionCreate, ExternalID: "C-1", Payload: []byte(`{"firstname":"Ada"}`)}

	first, err := exec.Execute(ctx, create)
	if err != nil {
		t.Fatalf("Execute(create) error = %v", err)
	}
	if first.ResourceID < 1000 || first.CommandID == "" {
		t.Errorf("Execute(create) = %+v", first)
	}

	_, err = exec.Execute(ctx, create)
	if !core.IsIntegrityConflict(err) {
		t.Fatalf("duplicate create error = %v, want integrity conflict", err)
	}
	if msg := core.FormatUserError(err); !strings.Contains(msg, "A record with External ID already exists") {
		t.Errorf("duplicate message = %q", msg)
	}

	_, err = exec.Execute(ctx, core.Command{
		Entity:  core.EntityLoans,
		Action:  core.ActionRepay,
		Targets: core.TargetIDs{AccountNo: strings.Repeat("9", 25)},
	})
	var ce *core.CommandError
	if !errors.As(err, &ce) || ce.Code != "22001" {
		t.Errorf("long account number error = %v, want 22001", err)
	}

	approved, err := exec.Execute(ctx, core.Command{
		Entity:  core.EntityClients,
		Action:  core.ActionActivate,
		Targets: core.TargetIDs{ResourceID: first.ResourceID},
	})
	if err != nil || approved.ResourceID != first.ResourceID {
		t.Errorf("Execute(activate) = %+v, %v", approved, err)
	}

	var journaled int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM command_journal`).Scan(&journaled); err != nil {
		t.Fatal(err)
	}
	if journaled != 2 {
		t.Errorf("journal rows = %d, want 2", journaled)
	}
}
