package commands_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/spend/internal/apitest"
	"github.com/cleared-dev/spend/internal/commands"
	"github.com/cleared-dev/spend/internal/export"
	"github.com/cleared-dev/spend/internal/model"
	"github.com/cleared-dev/spend/internal/session"
)

const (
	adaEmail    = "ada@example.com"
	adaPassword = "s3cret"
)

// harness runs the CLI in-process against a fake API with a private config
// directory.
type harness struct {
	t   *testing.T
	srv *apitest.Server
	dir string
}

func newHarness(t *testing.T, opts ...apitest.Option) *harness {
	t.Helper()
	srv := apitest.NewServer(opts...)
	t.Cleanup(srv.Close)
	srv.AddUser(adaEmail, adaPassword, "Ada", "Lovelace")
	return &harness{t: t, srv: srv, dir: t.TempDir()}
}

type result struct {
	stdout string
	stderr string
	err    error
}

func (h *harness) runWithInput(stdin string, args ...string) result {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := commands.NewRootCommand()
	cmd.SetArgs(append([]string{"--config-dir", h.dir, "--api-url", h.srv.URL()}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(h.t.Context())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func (h *harness) run(args ...string) result {
	h.t.Helper()
	return h.runWithInput("", args...)
}

func (h *harness) mustRun(args ...string) result {
	h.t.Helper()
	res := h.run(args...)
	require.NoError(h.t, res.err, "spend %s\nstdout: %s\nstderr: %s", strings.Join(args, " "), res.stdout, res.stderr)
	return res
}

func (h *harness) login() {
	h.t.Helper()
	h.mustRun("login", "--email", adaEmail, "--password", adaPassword)
}

func (h *harness) statePath() string {
	return filepath.Join(h.dir, session.StateFile)
}

func (h *harness) seed(date, category string, amount string, description string) model.Expense {
	h.t.Helper()
	d, err := model.ParseDate(date)
	require.NoError(h.t, err)
	var catID int64
	for _, c := range h.srv.Categories() {
		if c.Name == category {
			catID = c.ID
		}
	}
	require.NotZero(h.t, catID, "unknown category %s", category)
	return h.srv.AddExpense(adaEmail, model.Draft{
		Amount:      decimal.RequireFromString(amount),
		Date:        d,
		Category:    catID,
		Description: description,
	})
}

func TestLogin_WhoamiLogout(t *testing.T) {
	h := newHarness(t)

	res := h.mustRun("login", "--email", adaEmail, "--password", adaPassword)
	assert.Contains(t, res.stderr, "Successfully logged in!")
	require.FileExists(t, h.statePath())

	res = h.mustRun("whoami")
	assert.Equal(t, "Ada Lovelace <ada@example.com>\n", res.stdout)

	res = h.mustRun("logout")
	assert.Contains(t, res.stderr, "Successfully logged out")
	assert.NoFileExists(t, h.statePath())
	assert.Zero(t, h.srv.SessionCount(), "server session ended")

	res = h.run("whoami")
	assert.ErrorIs(t, res.err, session.ErrLoginRequired)
}

func TestLogin_BadCredentials(t *testing.T) {
	h := newHarness(t)

	res := h.run("login", "--email", adaEmail, "--password", "wrong")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Invalid email or password")
	assert.NoFileExists(t, h.statePath())
}

func TestLogin_Prompted(t *testing.T) {
	h := newHarness(t)

	res := h.runWithInput(adaEmail+"\n"+adaPassword+"\n", "login")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "Email: ")
	assert.Contains(t, res.stderr, "Password: ")
	assert.FileExists(t, h.statePath())
}

func TestLogin_SavedSessionCarriesToken(t *testing.T) {
	h := newHarness(t)
	h.login()

	st, err := session.LoadState(h.dir)
	require.NoError(t, err)
	assert.Equal(t, h.srv.URL(), st.BaseURL)
	assert.Equal(t, adaEmail, st.User.Email)
	assert.Equal(t, h.srv.CSRFToken(), st.CSRFToken)

	var names []string
	for _, c := range st.Cookies {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, apitest.SessionCookie)
}

func TestLogin_FailureKeepsSavedSession(t *testing.T) {
	h := newHarness(t)
	h.login()

	res := h.run("login", "--email", adaEmail, "--password", "typo")
	require.Error(t, res.err)
	assert.FileExists(t, h.statePath())

	res = h.mustRun("whoami")
	assert.Equal(t, "Ada Lovelace <ada@example.com>\n", res.stdout)
}

func TestRegister_FailureKeepsSavedSession(t *testing.T) {
	h := newHarness(t)
	h.login()

	res := h.run("register", "--email", adaEmail, "--password", "another")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "A user with that email already exists.")
	assert.FileExists(t, h.statePath())

	h.mustRun("whoami")
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	res := h.mustRun("register", "--email", "grace@example.com", "--password", "hopper",
		"--first-name", "Grace", "--last-name", "Hopper")
	assert.Contains(t, res.stderr, "Registration successful!")

	res = h.mustRun("whoami")
	assert.Equal(t, "Grace Hopper <grace@example.com>\n", res.stdout)
}

func TestRegister_PromptMismatch(t *testing.T) {
	h := newHarness(t)

	res := h.runWithInput("one\ntwo\n", "register", "--email", "grace@example.com")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "password2: The two password fields didn't match.")
	assert.NoFileExists(t, h.statePath())
}

func TestExpenseLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login()

	res := h.mustRun("add", "--amount", "12.5", "--date", "2024-03-01", "--category", "transportation", "-m", "Bus pass")
	assert.Equal(t, "Added expense #1\n", res.stdout)
	assert.Contains(t, res.stderr, "Expense added")

	res = h.mustRun("list")
	assert.Contains(t, res.stdout, "Bus pass")
	assert.Contains(t, res.stdout, "Transportation")
	assert.Contains(t, res.stdout, "12.50")
	assert.Contains(t, res.stdout, "1 expense(s)")

	res = h.mustRun("edit", "1", "--amount", "15")
	assert.Equal(t, "Updated expense #1\n", res.stdout)
	stored := h.srv.Expenses(adaEmail)
	require.Len(t, stored, 1)
	assert.True(t, decimal.RequireFromString("15").Equal(stored[0].Amount))
	assert.Equal(t, "Bus pass", stored[0].Description, "unchanged fields kept")

	res = h.mustRun("delete", "1")
	assert.Equal(t, "Deleted expense #1\n", res.stdout)
	assert.Empty(t, h.srv.Expenses(adaEmail))

	res = h.mustRun("history")
	for _, action := range []string{"login", "add", "update", "delete"} {
		assert.Contains(t, res.stdout, action)
	}
	assert.Contains(t, res.stdout, adaEmail)
}

func TestAdd_Defaults(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.mustRun("add", "--amount", "3")
	stored := h.srv.Expenses(adaEmail)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(1), stored[0].Category, "first category")
	assert.Equal(t, model.Today(), stored[0].Date)
}

func TestAdd_Invalid(t *testing.T) {
	h := newHarness(t)
	h.login()

	res := h.run("add", "--amount", "-4")
	assert.Error(t, res.err)

	res = h.run("add", "--amount", "4", "--category", "Groceries")
	assert.Error(t, res.err)

	res = h.run("add", "--amount", "4", "--date", "03/01/2024")
	assert.Error(t, res.err)

	assert.Empty(t, h.srv.Expenses(adaEmail))
	assert.Zero(t, h.srv.CountRequests("POST", "/expenses"))
}

func TestAdd_ServerRejection(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.FailNext("POST", "/expenses", 500, "database unavailable")

	res := h.run("add", "--amount", "4")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "database unavailable")
	assert.FileExists(t, h.statePath(), "a failed write keeps the session")
}

func TestEdit_UnknownExpense(t *testing.T) {
	h := newHarness(t)
	h.login()

	res := h.run("edit", "42", "--amount", "1")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "expense 42 not found")

	res = h.run("edit", "abc")
	assert.Error(t, res.err)
}

func TestList_Filters(t *testing.T) {
	h := newHarness(t)
	h.seed("2024-03-01", "Shopping", "20.00", "socks")
	h.seed("2024-03-02", "Food & Dining", "8.25", "bagel")
	h.seed("2024-04-10", "Shopping", "99.99", "jacket")
	h.login()

	res := h.mustRun("list")
	assert.Contains(t, res.stdout, "Filter: none")
	assert.Contains(t, res.stdout, "128.24")
	assert.Contains(t, res.stdout, "3 expense(s)")

	res = h.mustRun("list", "--category", "Shopping")
	assert.Contains(t, res.stdout, "socks")
	assert.Contains(t, res.stdout, "jacket")
	assert.NotContains(t, res.stdout, "bagel")

	res = h.mustRun("list", "--from", "2024-03-02", "--to", "2024-03-31")
	assert.Contains(t, res.stdout, "bagel")
	assert.NotContains(t, res.stdout, "socks")
	assert.NotContains(t, res.stdout, "jacket")

	res = h.mustRun("list", "--date", "2024-03-01", "--from", "2024-01-01")
	assert.Contains(t, res.stdout, "date range disabled")
	assert.Contains(t, res.stdout, "socks")
	assert.Contains(t, res.stdout, "1 expense(s)")

	res = h.mustRun("list", "--date", "2023-01-01")
	assert.Contains(t, res.stdout, "No expenses found.")

	res = h.run("list", "--from", "yesterday")
	assert.Error(t, res.err)
}

func TestSessionExpiredBeforeCommand(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.ExpireSessions()

	res := h.run("list")
	assert.ErrorIs(t, res.err, session.ErrLoginRequired)
	assert.NoFileExists(t, h.statePath(), "a rejected session is forgotten")
}

func TestSessionExpiredDuringCommand(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.FailNext("GET", "/expenses", 401, "Token expired")

	res := h.run("list")
	assert.ErrorIs(t, res.err, session.ErrLoginRequired)
	assert.Contains(t, res.stderr, "Your session has expired. Please log in again.")
	assert.NoFileExists(t, h.statePath())
}

func TestSessionExpiredDuringMountReportedOnce(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.FailNext("GET", "/categories", 401, "Token expired")

	res := h.run("list")
	assert.ErrorIs(t, res.err, session.ErrLoginRequired)
	assert.Equal(t, 1, strings.Count(res.stderr, "Your session has expired"))
	assert.Zero(t, h.srv.CountRequests("GET", "/expenses"))
}

func TestNetworkFailureKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.Close()

	res := h.run("whoami")
	require.Error(t, res.err)
	assert.NotErrorIs(t, res.err, session.ErrLoginRequired)
	assert.FileExists(t, h.statePath())
}

func TestSessionForAnotherAPIIgnored(t *testing.T) {
	h := newHarness(t)
	h.login()

	other := apitest.NewServer()
	t.Cleanup(other.Close)
	res := h.run("--api-url", other.URL(), "whoami")
	assert.ErrorIs(t, res.err, session.ErrLoginRequired)
}

func TestCategories(t *testing.T) {
	h := newHarness(t)
	h.login()

	res := h.mustRun("categories")
	assert.Contains(t, res.stdout, "ID")
	assert.Contains(t, res.stdout, "Food & Dining")
	assert.Contains(t, res.stdout, "Bills & Utilities")

	res = h.mustRun("categories", "--format", "csv")
	assert.True(t, strings.HasPrefix(res.stdout, "id,name\n1,Food & Dining\n"), res.stdout)

	res = h.run("categories", "--format", "xml")
	assert.Error(t, res.err)
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.seed("2024-03-01", "Shopping", "20.00", "socks, wool")
	h.seed("2024-03-02", "Food & Dining", "8.25", "bagel")
	h.login()

	res := h.mustRun("export", "--format", "json")
	var records []export.Record
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "bagel", records[0].Description, "newest first")
	assert.Equal(t, "Food & Dining", records[0].Category)
	assert.Equal(t, "8.25", records[0].Amount)

	out := filepath.Join(t.TempDir(), "out.csv")
	res = h.mustRun("export", "--category", "Shopping", "-o", out)
	assert.Contains(t, res.stderr, "Exported 1 expense(s)")
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "id,date,category,amount,description\n")
	assert.Contains(t, string(data), `"socks, wool"`)

	res = h.run("export", "--format", "xml")
	assert.Error(t, res.err)
}

func TestImport_File(t *testing.T) {
	h := newHarness(t)
	h.login()

	src := filepath.Join("..", "..", "testdata", "expenses.csv")

	res := h.mustRun("import", src, "--dry-run")
	assert.Contains(t, res.stdout, "3 expense(s) ready to import")
	assert.Empty(t, h.srv.Expenses(adaEmail))

	res = h.mustRun("import", src, "--category", "Shopping")
	assert.Contains(t, res.stdout, "Imported 3 expense(s) from expenses.csv")
	assert.Equal(t, 1, h.srv.CountRequests("GET", "/expenses"), "one reload after the batch")

	stored := h.srv.Expenses(adaEmail)
	require.Len(t, stored, 3)
	assert.Equal(t, "shoes, running", stored[0].Description)
	assert.Equal(t, "Shopping", stored[0].CategoryName, "fallback category")

	res = h.mustRun("history")
	assert.Contains(t, res.stdout, "expenses.csv: 3 expense(s)")
}

func TestImport_ExportRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.seed("2024-03-01", "Shopping", "20.00", "socks")
	h.seed("2024-03-02", "Entertainment", "12.00", "cinema")
	h.login()

	out := filepath.Join(t.TempDir(), "ada.csv")
	h.mustRun("export", "-o", out)

	h.srv.AddUser("bob@example.com", "pw", "Bob", "")
	h.mustRun("login", "--email", "bob@example.com", "--password", "pw")
	res := h.mustRun("import", out)
	assert.Contains(t, res.stdout, "Imported 2 expense(s)")

	bob := h.srv.Expenses("bob@example.com")
	require.Len(t, bob, 2)
	assert.Equal(t, "cinema", bob[0].Description)
	assert.Equal(t, "Entertainment", bob[0].CategoryName)
}

func TestImport_InvalidRowsAddNothing(t *testing.T) {
	h := newHarness(t)
	h.login()

	src := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(src, []byte(
		"id,date,category,amount,description\n"+
			",2024-03-01,Groceries,5.00,milk\n"+
			",2024-03-02,Other,0,nothing\n"+
			",2024-03-03,Other,1.00,ok\n"), 0o600))

	res := h.run("import", src)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "line 2")
	assert.Contains(t, res.err.Error(), "line 3")
	assert.Empty(t, h.srv.Expenses(adaEmail))
}

func TestImport_Inbox(t *testing.T) {
	h := newHarness(t)
	h.login()

	res := h.mustRun("import", "--format", "chase")
	assert.Contains(t, res.stdout, "Nothing to import")

	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "chase_checking.csv"))
	require.NoError(t, err)
	inbox := filepath.Join(h.dir, "import")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "chase.csv"), data, 0o644))

	res = h.mustRun("import", "--format", "chase")
	assert.Contains(t, res.stdout, "Imported 5 expense(s) from chase.csv")

	stored := h.srv.Expenses(adaEmail)
	require.Len(t, stored, 5)
	for _, e := range stored {
		assert.Equal(t, "Other", e.CategoryName)
		assert.True(t, e.Amount.IsPositive())
	}

	assert.NoFileExists(t, filepath.Join(inbox, "chase.csv"))
	assert.FileExists(t, filepath.Join(inbox, "processed", "chase.csv"))
}

func TestImport_StopsAtFirstFailure(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.FailNext("POST", "/expenses", 500, "disk full")

	res := h.run("import", filepath.Join("..", "..", "testdata", "expenses.csv"))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "expense 1 of 3")
	assert.Contains(t, res.stderr, "disk full")
	assert.Equal(t, 1, h.srv.CountRequests("POST", "/expenses"), "nothing sent after the failure")
	assert.Empty(t, h.srv.Expenses(adaEmail))
}

func TestImport_UnknownFormat(t *testing.T) {
	h := newHarness(t)

	res := h.run("import", "x.csv", "--format", "ofx")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown import format")
}

func TestHistory(t *testing.T) {
	h := newHarness(t)

	res := h.mustRun("history")
	assert.Equal(t, "No activity recorded.\n", res.stdout)

	h.login()
	for range 3 {
		h.mustRun("add", "--amount", "1")
	}

	res = h.mustRun("history", "--limit", "2")
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	assert.Len(t, lines, 3, "header plus two entries")
	assert.NotContains(t, res.stdout, "login")

	res = h.mustRun("history", "-n", "0")
	lines = strings.Split(strings.TrimSpace(res.stdout), "\n")
	assert.Len(t, lines, 5)
}

func TestConfig(t *testing.T) {
	h := newHarness(t)

	res := h.mustRun("config", "init")
	assert.Contains(t, res.stdout, "config.yaml")
	data, err := os.ReadFile(filepath.Join(h.dir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "base_url: "+h.srv.URL())

	res = h.run("config", "init")
	assert.Error(t, res.err)

	h.mustRun("config", "init", "--force")

	res = h.mustRun("config", "show", "--log-level", "debug")
	assert.Contains(t, res.stdout, "base_url: "+h.srv.URL())
	assert.Contains(t, res.stdout, "level: debug")
	assert.Contains(t, res.stdout, "cookie_name: ecomm-refresh")
}

func TestDashboard_Script(t *testing.T) {
	h := newHarness(t)
	h.seed("2024-03-01", "Shopping", "20.00", "socks")
	h.login()

	script := strings.Join([]string{
		`add amount=9.99 date=2024-05-01 category="Food & Dining" description="Lunch out"`,
		`filter category="Food & Dining"`,
		`edit 2 amount=10.50`,
		`filter clear`,
		`delete 1`,
		`frobnicate`,
		`edit 2 colour=red`,
		`help`,
		`quit`,
		`delete 2`,
	}, "\n") + "\n"

	res := h.runWithInput(script, "dashboard")
	require.NoError(t, res.err, res.stderr)

	assert.Contains(t, res.stdout, "Logged in as Ada Lovelace")
	assert.Contains(t, res.stdout, "Lunch out")
	assert.Contains(t, res.stdout, "Filter: category=Food & Dining")
	assert.Contains(t, res.stdout, "10.50")
	assert.Contains(t, res.stdout, "Commands:")
	assert.Contains(t, res.stderr, `unknown command "frobnicate"`)
	assert.Contains(t, res.stderr, `unknown field "colour"`)
	assert.Contains(t, res.stderr, "Expense added")
	assert.Contains(t, res.stderr, "Expense updated")
	assert.Contains(t, res.stderr, "Expense deleted")

	stored := h.srv.Expenses(adaEmail)
	require.Len(t, stored, 1, "input after quit is ignored")
	assert.Equal(t, "Lunch out", stored[0].Description)
	assert.True(t, decimal.RequireFromString("10.50").Equal(stored[0].Amount))
}

func TestDashboard_RangeRejectedUnderExactDate(t *testing.T) {
	h := newHarness(t)
	h.seed("2024-03-01", "Shopping", "20.00", "socks")
	h.seed("2024-03-09", "Shopping", "5.00", "laces")
	h.login()

	script := strings.Join([]string{
		`filter date=2024-03-01`,
		`filter from=2024-03-05`,
		`filter date= from=2024-03-05`,
		`quit`,
	}, "\n") + "\n"

	res := h.runWithInput(script, "dashboard")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "date range is disabled while an exact date is set")
	assert.Contains(t, res.stdout, "Filter: date=2024-03-01")
	assert.Contains(t, res.stdout, "Filter: from=2024-03-05")
}

func TestDashboard_EndsOnExpiry(t *testing.T) {
	h := newHarness(t)
	h.seed("2024-03-01", "Shopping", "20.00", "socks")
	h.login()
	h.srv.FailNext("DELETE", "/expenses/1", 401, "Token expired")

	res := h.runWithInput("delete 1\nadd amount=1\n", "dashboard")
	assert.ErrorIs(t, res.err, session.ErrLoginRequired)
	assert.Contains(t, res.stderr, "Your session has expired. Please log in again.")
	assert.Zero(t, h.srv.CountRequests("POST", "/expenses"), "the loop stops at the expiry")
	assert.NoFileExists(t, h.statePath())
}

func TestDashboard_EOF(t *testing.T) {
	h := newHarness(t)
	h.login()

	res := h.runWithInput("", "dashboard")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "No expenses found.")
}
