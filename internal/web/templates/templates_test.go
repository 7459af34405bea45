package templates

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

func TestJobPage(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	done := created.Add(time.Minute)

	tests := []struct {
		name    string
		job     *core.ImportJob
		want    []string
		notWant []string
	}{
		{
			name: "pending",
			job:  &core.ImportJob{ID: "j1", EntityType: "clients", FileName: "clients.xlsx", CreatedAt: created},
			want: []string{
				"<title>Import j1</title>",
				"<dd>pending</dd>",
				"<dd>not yet</dd>",
				`<a href="/api/imports/j1/document">Download upload</a>`,
			},
			notWant: []string{"Imported"},
		},
		{
			name: "completed",
			job: &core.ImportJob{ID: "j2", EntityType: "offices", FileName: "offices.xlsx", CreatedAt: created,
				CompletedAt: &done, SuccessCount: 3, ErrorCount: 1},
			want: []string{
				"<dd>completed</dd>",
				"<dd>2026-03-01 09:31:00 UTC</dd>",
				`<dd class="ok">3</dd>`,
				`<dd class="err">1</dd>`,
				"Download annotated workbook",
			},
		},
		{
			name:    "escapes file name",
			job:     &core.ImportJob{ID: "j3", FileName: "<script>x</script>.xlsx", CreatedAt: created},
			want:    []string{"&lt;script&gt;x&lt;/script&gt;.xlsx"},
			notWant: []string{"<script>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			if err := JobPage(tt.job).Render(context.Background(), &b); err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			page := b.String()
			if !strings.HasPrefix(page, "<!doctype html>") || !strings.HasSuffix(page, "</body></html>") {
				t.Errorf("page is not wrapped in the layout: %q", page)
			}
			for _, w := range tt.want {
				if !strings.Contains(page, w) {
					t.Errorf("page missing %q", w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(page, w) {
					t.Errorf("page contains %q", w)
				}
			}
		})
	}
}

func TestErrorPage(t *testing.T) {
	var b strings.Builder
	msg := core.UserMessage{Message: `Bad "sheet"`, Action: "Upload again", Code: "FILE001"}
	if err := ErrorPage(msg).Render(context.Background(), &b); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	page := b.String()
	for _, w := range []string{"<title>Error</title>", "Bad &#34;sheet&#34;", "<p>Upload again</p>", "Code: FILE001"} {
		if !strings.Contains(page, w) {
			t.Errorf("page missing %q in %q", w, page)
		}
	}
}

func TestJobPage_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var b strings.Builder
	if err := JobPage(&core.ImportJob{ID: "j"}).Render(ctx, &b); err == nil {
		t.Error("Render() with cancelled context succeeded")
	}
}
