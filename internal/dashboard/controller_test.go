package dashboard

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/spend/internal/api"
	"github.com/cleared-dev/spend/internal/apitest"
	"github.com/cleared-dev/spend/internal/logging"
	"github.com/cleared-dev/spend/internal/model"
	"github.com/cleared-dev/spend/internal/notify"
)

const (
	email    = "ada@example.com"
	password = "correct horse"
)

type fixture struct {
	srv    *apitest.Server
	client *api.Client
	notes  *notify.Recorder
	ctrl   *Controller
}

func newFixture(t *testing.T, opts ...apitest.Option) *fixture {
	t.Helper()
	srv := apitest.NewServer(opts...)
	t.Cleanup(srv.Close)
	srv.AddUser(email, password, "Ada", "Lovelace")

	client, err := api.New(api.Config{
		BaseURL:            srv.URL(),
		CSRFHeader:         apitest.CSRFHeader,
		CSRFResponseHeader: apitest.CSRFHeader,
	}, api.WithLogger(logging.Discard()))
	require.NoError(t, err)
	_, err = client.Login(context.Background(), model.Credentials{Email: email, Password: password})
	require.NoError(t, err)

	notes := &notify.Recorder{}
	return &fixture{
		srv:    srv,
		client: client,
		notes:  notes,
		ctrl:   NewController(client, notes, WithLogger(logging.Discard())),
	}
}

func (f *fixture) seed(t *testing.T, amount, day string, category int64, desc string) model.Expense {
	t.Helper()
	return f.srv.AddExpense(email, model.Draft{
		Amount:      decimal.RequireFromString(amount),
		Date:        date(t, day),
		Category:    category,
		Description: desc,
	})
}

func TestMount(t *testing.T) {
	f := newFixture(t, apitest.WithCategories("Food", "Bus"))
	f.seed(t, "4.20", "2024-01-02", 1, "coffee")
	ctx := context.Background()

	require.NoError(t, f.ctrl.Mount(ctx))
	st := f.ctrl.State()
	assert.Equal(t, PhaseLoaded, st.Phase)
	assert.Len(t, st.Expenses, 1)
	assert.Len(t, st.Categories, 2)
	assert.Equal(t, int64(1), st.Form.Category)

	// Categories are fetched once per view.
	require.NoError(t, f.ctrl.FetchCategories(ctx))
	assert.Equal(t, 1, f.srv.CountRequests(http.MethodGet, "/categories"))
}

func TestMount_CategoryFailureDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "1", "2024-01-02", 1, "gum")
	f.srv.FailNext(http.MethodGet, "/categories", http.StatusInternalServerError, "down")

	require.NoError(t, f.ctrl.Mount(context.Background()))
	st := f.ctrl.State()
	assert.Equal(t, PhaseLoaded, st.Phase)
	assert.Len(t, st.Expenses, 1)
	assert.Empty(t, st.Categories)
}

func TestAddExpense_ScenarioFromCategories(t *testing.T) {
	f := newFixture(t, apitest.WithCategories("Food"))
	ctx := context.Background()
	require.NoError(t, f.ctrl.Mount(ctx))

	form := f.ctrl.State().Form
	require.Equal(t, int64(1), form.Category)
	form.Amount = decimal.RequireFromString("12.50")
	form.Date = date(t, "2024-01-01")
	form.Description = "lunch"
	f.ctrl.SetForm(form)

	listsBefore := f.srv.CountRequests(http.MethodGet, "/expenses")
	created, err := f.ctrl.AddExpense(ctx, f.ctrl.State().Form)
	require.NoError(t, err)
	assert.Equal(t, "Food", created.CategoryName)

	stored := f.srv.Expenses(email)
	require.Len(t, stored, 1)
	assert.Equal(t, "12.50", stored[0].Amount.StringFixed(2))
	assert.Equal(t, "2024-01-01", stored[0].Date.String())
	assert.Equal(t, "lunch", stored[0].Description)

	st := f.ctrl.State()
	assert.Equal(t, listsBefore+1, f.srv.CountRequests(http.MethodGet, "/expenses"), "full refetch after add")
	assert.Len(t, st.Expenses, 1)
	assert.Equal(t, model.Draft{Category: 1}, st.Form, "form reset")
	assert.Equal(t, 1, f.notes.Count(notify.KindSuccess))
}

func TestAddExpense_FailureIsNotified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Mount(ctx))

	f.srv.FailNext(http.MethodPost, "/expenses", http.StatusInternalServerError, "")
	form := model.Draft{Amount: decimal.NewFromInt(5), Date: date(t, "2024-01-01"), Category: 1, Description: "keep me"}
	f.ctrl.SetForm(form)

	_, err := f.ctrl.AddExpense(ctx, form)
	require.Error(t, err)
	assert.Equal(t, []notify.Note{{Kind: notify.KindError, Message: "Failed to add expense"}}, f.notes.Notes())
	assert.Equal(t, form, f.ctrl.State().Form, "form kept for retry")
	assert.Empty(t, f.srv.Expenses(email))
}

func TestUpdateExpense(t *testing.T) {
	f := newFixture(t)
	e := f.seed(t, "10", "2024-01-02", 1, "lunch")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Mount(ctx))

	d := e.Draft()
	d.Amount = decimal.RequireFromString("11.25")
	_, err := f.ctrl.UpdateExpense(ctx, e.ID, d)
	require.NoError(t, err)

	st := f.ctrl.State()
	require.Len(t, st.Expenses, 1)
	assert.Equal(t, "11.25", st.Expenses[0].Amount.StringFixed(2))

	_, err = f.ctrl.UpdateExpense(ctx, 999, d)
	require.Error(t, err)
	assert.Equal(t, "Not found.", f.notes.Notes()[len(f.notes.Notes())-1].Message)
}

func TestDeleteExpense(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, "1", "2024-01-02", 1, "a")
	f.seed(t, "2", "2024-01-03", 1, "b")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Mount(ctx))
	require.Len(t, f.ctrl.State().Expenses, 2)

	require.NoError(t, f.ctrl.DeleteExpense(ctx, a.ID))
	st := f.ctrl.State()
	require.Len(t, st.Expenses, 1)
	assert.Equal(t, "b", st.Expenses[0].Description)

	err := f.ctrl.DeleteExpense(ctx, a.ID)
	require.Error(t, err)
	assert.Equal(t, 1, f.notes.Count(notify.KindError))
}

func TestFetchExpenses_FailureKeepsPreviousList(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "1", "2024-01-02", 1, "a")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Mount(ctx))

	f.srv.FailNext(http.MethodGet, "/expenses", http.StatusServiceUnavailable, "maintenance")
	err := f.ctrl.FetchExpenses(ctx)
	require.Error(t, err)

	st := f.ctrl.State()
	assert.Equal(t, PhaseError, st.Phase)
	assert.False(t, st.Loading())
	assert.Len(t, st.Expenses, 1)
	assert.Equal(t, 0, f.notes.Count(notify.KindError), "read failures are not toasted")
}

func TestSetFilter(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "1", "2024-01-10", 1, "a")
	f.seed(t, "2", "2024-01-15", 2, "b")
	f.seed(t, "3", "2024-01-20", 1, "c")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Mount(ctx))

	require.NoError(t, f.ctrl.SetFilter(ctx, model.Filter{ExactDate: date(t, "2024-01-15"), StartDate: date(t, "2024-01-01")}))
	st := f.ctrl.State()
	require.Len(t, st.Expenses, 1)
	assert.True(t, st.RangeInputsDisabled())

	reqs := f.srv.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, "2024-01-15", last.Query.Get("date_from"))
	assert.Equal(t, "2024-01-15", last.Query.Get("date_to"))

	require.NoError(t, f.ctrl.SetFilter(ctx, model.Filter{Category: apitest.DefaultCategories[0]}))
	assert.Len(t, f.ctrl.State().Expenses, 2)
}

func TestObserverSeesUnauthorized(t *testing.T) {
	f := newFixture(t)
	var observed []error
	errExpired := errors.New("expired")
	ctrl := NewController(f.client, f.notes,
		WithLogger(logging.Discard()),
		WithObserver(func(err error) error {
			observed = append(observed, err)
			if api.IsUnauthorized(err) {
				return errExpired
			}
			return err
		}))

	f.srv.ExpireSessions()
	err := ctrl.Mount(context.Background())
	require.ErrorIs(t, err, errExpired)
	assert.Len(t, observed, 1, "a rejected session stops the mount")
	assert.Zero(t, f.srv.CountRequests(http.MethodGet, "/expenses"))
	assert.Equal(t, PhaseError, ctrl.State().Phase)
	assert.False(t, ctrl.State().Loading())
}

func TestMount_ExpiredListStillObservedOnce(t *testing.T) {
	f := newFixture(t)
	calls := 0
	ctrl := NewController(f.client, f.notes,
		WithLogger(logging.Discard()),
		WithObserver(func(err error) error {
			if api.IsUnauthorized(err) {
				calls++
			}
			return err
		}))

	f.srv.FailNext(http.MethodGet, "/expenses", http.StatusUnauthorized, "expired")
	err := ctrl.Mount(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.Equal(t, 1, calls)
	assert.Len(t, ctrl.State().Categories, len(apitest.DefaultCategories))
}

func TestRender(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "12.5", "2024-01-02", 1, "lunch")
	f.seed(t, "3", "2024-01-03", 2, "bus")
	ctx := context.Background()
	require.NoError(t, f.ctrl.Mount(ctx))

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, f.ctrl.State(), f.ctrl.Categories()))
	out := buf.String()
	assert.Contains(t, out, "Filter: none")
	assert.Contains(t, out, "Food & Dining")
	assert.Contains(t, out, "Transportation")
	assert.Contains(t, out, "12.50")
	assert.Contains(t, out, "15.50")
	assert.Contains(t, out, "2 expense(s)")

	require.NoError(t, f.ctrl.SetFilter(ctx, model.Filter{ExactDate: date(t, "2024-02-01")}))
	buf.Reset()
	require.NoError(t, Render(&buf, f.ctrl.State(), f.ctrl.Categories()))
	assert.Contains(t, buf.String(), "date range disabled")
	assert.Contains(t, buf.String(), "No expenses found.")
}

func TestAddExpenses_SingleResync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Mount(ctx))
	lists := f.srv.CountRequests(http.MethodGet, "/expenses")

	drafts := []model.Draft{
		{Amount: decimal.NewFromInt(1), Date: date(t, "2024-01-01"), Category: 1, Description: "a"},
		{Amount: decimal.NewFromInt(2), Date: date(t, "2024-01-02"), Category: 2, Description: "b"},
		{Amount: decimal.NewFromInt(3), Date: date(t, "2024-01-03"), Category: 404, Description: "bad category"},
		{Amount: decimal.NewFromInt(4), Date: date(t, "2024-01-04"), Category: 1, Description: "never sent"},
	}
	created, err := f.ctrl.AddExpenses(ctx, drafts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expense 3 of 4")
	assert.Len(t, created, 2)
	assert.Len(t, f.srv.Expenses(email), 2)
	assert.Equal(t, lists+1, f.srv.CountRequests(http.MethodGet, "/expenses"))
	assert.Len(t, f.ctrl.State().Expenses, 2)
	assert.Equal(t, 1, f.notes.Count(notify.KindError))
}
