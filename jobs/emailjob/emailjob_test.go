package emailjob

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arjunv/chronoq"
	"github.com/arjunv/chronoq/config"
	"github.com/arjunv/chronoq/parser"
	smtpmock "github.com/mocktools/go-smtp-mock/v2"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestJobExecuteDeliversToFilteredRecipients(t *testing.T) {
	server := smtpmock.New(smtpmock.ConfigurationAttr{})
	require.NoError(t, server.Start())
	defer server.Stop()

	dir := t.TempDir()
	csvPath := writeTempFile(t, dir, "recipients.csv", "email,plan\nalice@example.com,pro\nbob@example.com,free\n")
	tmplPath := writeTempFile(t, dir, "tmpl.html", "Hello {{.email}}, your plan is {{.plan}}")

	cfg := config.EmailJobConfig{
		SMTP: config.SMTPConfig{
			Host: server.HostAddress,
			Port: server.Port,
			From: "sender@example.com",
		},
		CSVPath:      csvPath,
		TemplatePath: tmplPath,
		Subject:      "welcome",
		FilterExpr:   `plan == "pro"`,
		RateLimit:    100,
		BurstLimit:   100,
	}

	job := New(cfg, filepath.Join(dir, "offset.state"), nil)

	jobDetail := chronoq.NewJobDetail(chronoq.NewJobKeyWithGroup("welcome-job", "g1"), "emailjob", nil)
	execCtx := chronoq.NewTestJobExecutionContext(context.Background(), jobDetail, nil, time.Now())

	err := job.Execute(execCtx)
	require.NoError(t, err)

	result, ok := execCtx.Result.(*Result)
	require.True(t, ok)
	require.Equal(t, 1, result.Attempted, "only the pro-plan recipient should be attempted")
	require.Equal(t, 1, result.Delivered)
	require.Equal(t, 0, result.Failed)
}

func TestFilterRecipients(t *testing.T) {
	expr, err := parser.ParseExpression(`plan == "pro"`)
	require.NoError(t, err)

	recipients := []parser.Recipient{
		{Email: "a@example.com", Data: map[string]string{"plan": "pro"}},
		{Email: "b@example.com", Data: map[string]string{"plan": "free"}},
	}

	out := filterRecipients(recipients, expr)
	require.Len(t, out, 1)
	require.Equal(t, "a@example.com", out[0].Email)
}

func TestJobInterruptStopsBeforeNextRecipient(t *testing.T) {
	job := New(config.EmailJobConfig{}, t.TempDir()+"/offset.state", nil)
	require.NoError(t, job.Interrupt())
	require.True(t, job.interrupted.Load())
}
