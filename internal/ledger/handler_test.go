package ledger

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(f *fixture) *fiber.App {
	app := fiber.New()
	h := NewHandler(f.svc)

	grp := app.Group("/budgets/:budgetID")
	grp.Post("/transactions", h.Create)
	grp.Get("/transactions", h.List)
	grp.Post("/transactions/bulk", h.Import)
	grp.Get("/transactions/:transactionID", h.Get)
	grp.Patch("/transactions/:transactionID", h.Update)
	grp.Post("/transactions/:transactionID/split", h.Split)
	grp.Delete("/transactions/:transactionID", h.Delete)
	grp.Post("/transfers", h.CreateTransfer)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp, raw
}

func TestHandlerCreate(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	body := `{"status":"pending","line":{"account_id":"` + f.account.String() + `","amount_minor":-1250,"memo":"coffee"}}`
	resp, raw := doJSON(t, app, http.MethodPost, "/budgets/"+f.budget.String()+"/transactions", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}

	var txn Transaction
	if err := json.Unmarshal(raw, &txn); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if txn.Status != StatusPending {
		t.Errorf("status = %s, want pending", txn.Status)
	}
	if len(txn.Lines) != 1 || txn.Lines[0].AmountMinor != -1250 {
		t.Errorf("lines = %+v", txn.Lines)
	}
}

func TestHandlerCreateErrors(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)
	base := "/budgets/" + f.budget.String() + "/transactions"

	resp, raw := doJSON(t, app, http.MethodPost, base,
		`{"line":{"account_id":"b7a6f0a2-0000-0000-0000-000000000000","amount_minor":-100}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown account status = %d, body %s", resp.StatusCode, raw)
	}
	var errBody map[string]any
	if err := json.Unmarshal(raw, &errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if _, ok := errBody["error"]; !ok {
		t.Errorf("error body missing error field: %s", raw)
	}

	resp, _ = doJSON(t, app, http.MethodPost, "/budgets/not-a-uuid/transactions", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad budget id status = %d", resp.StatusCode)
	}
}

func TestHandlerTransferAndList(t *testing.T) {
	f := newFixture(t)
	to := f.store.SeedAccount(f.budget, "USD")
	app := newTestApp(f)

	body := `{"from_account_id":"` + f.account.String() + `","to_account_id":"` + to.String() + `","amount_minor":500}`
	resp, raw := doJSON(t, app, http.MethodPost, "/budgets/"+f.budget.String()+"/transfers", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("transfer status = %d, body %s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, app, http.MethodGet, "/budgets/"+f.budget.String()+"/transactions?include_lines=true", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list struct {
		Items []Transaction `json:"items"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || len(list.Items[0].Lines) != 2 {
		t.Fatalf("list = %+v, want one transfer with two lines", list.Items)
	}
}

func TestHandlerListLinesByDefault(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	f.mustCreate(t, CreateRequest{
		Line: &LineInput{AccountID: f.account, AmountMinor: -100},
	})

	resp, raw := doJSON(t, app, http.MethodGet, "/budgets/"+f.budget.String()+"/transactions", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, body %s", resp.StatusCode, raw)
	}
	var list struct {
		Items []Transaction `json:"items"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || len(list.Items[0].Lines) != 1 {
		t.Fatalf("list = %+v, want lines included when include_lines is absent", list.Items)
	}

	resp, raw = doJSON(t, app, http.MethodGet, "/budgets/"+f.budget.String()+"/transactions?include_lines=false", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	list.Items = nil
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Lines != nil {
		t.Fatalf("list = %+v, want lines omitted when include_lines=false", list.Items)
	}
}

func TestHandlerUpdateClearsWithNull(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	txn := f.mustCreate(t, CreateRequest{
		Notes: ptr("keep or clear"),
		Line:  &LineInput{AccountID: f.account, AmountMinor: -100},
	})

	path := "/budgets/" + f.budget.String() + "/transactions/" + txn.ID.String()
	resp, raw := doJSON(t, app, http.MethodPatch, path, `{"notes":null}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", resp.StatusCode, raw)
	}
	var updated Transaction
	if err := json.Unmarshal(raw, &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Notes != nil {
		t.Errorf("notes = %q, want cleared", *updated.Notes)
	}

	// An empty patch body is rejected, not treated as a no-op.
	resp, _ = doJSON(t, app, http.MethodPatch, path, `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty patch status = %d, want 400", resp.StatusCode)
	}
}

func TestHandlerBulkImportStatus(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)
	path := "/budgets/" + f.budget.String() + "/transactions/bulk"
	body := `{"transactions":[{"import_id":"row-1","line":{"account_id":"` + f.account.String() + `","amount_minor":-100}}]}`

	resp, raw := doJSON(t, app, http.MethodPost, path, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first import status = %d, body %s", resp.StatusCode, raw)
	}
	var result ImportResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.CreatedCount != 1 || result.ExistingCount != 0 {
		t.Fatalf("result = %+v", result)
	}

	// Replays report 200 with nothing created.
	resp, raw = doJSON(t, app, http.MethodPost, path, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay status = %d, body %s", resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.CreatedCount != 0 || result.ExistingCount != 1 {
		t.Fatalf("replay result = %+v", result)
	}
}

func TestHandlerBulkImportFailures(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)
	path := "/budgets/" + f.budget.String() + "/transactions/bulk"

	body := `{"transactions":[
		{"import_id":"row-1","line":{"account_id":"` + f.account.String() + `","amount_minor":-100}},
		{"import_id":"row-2","line":{"account_id":"` + f.account.String() + `","amount_minor":0}}
	]}`
	resp, raw := doJSON(t, app, http.MethodPost, path, body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	var errBody struct {
		Error    string            `json:"error"`
		Failures map[string]string `json:"failures"`
	}
	if err := json.Unmarshal(raw, &errBody); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := errBody.Failures["1"]; !ok {
		t.Errorf("failures = %v, want entry for index 1", errBody.Failures)
	}
}

func TestHandlerDelete(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	txn := f.mustCreate(t, CreateRequest{
		Line: &LineInput{AccountID: f.account, AmountMinor: -100},
	})
	path := "/budgets/" + f.budget.String() + "/transactions/" + txn.ID.String()

	resp, _ := doJSON(t, app, http.MethodDelete, path, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, app, http.MethodGet, path, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", resp.StatusCode)
	}
}
