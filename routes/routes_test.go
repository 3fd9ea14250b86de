package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library_lending/app"
	"library_lending/config"
	"library_lending/lending"
	"library_lending/logging"
	"library_lending/memstore"
	"library_lending/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type api struct {
	t *testing.T
	r *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	cfg := config.Default()
	cfg.Store = config.StoreMemory
	a := app.NewWithStore(cfg, logging.Discard(), memstore.New())
	RegisterRoutes(a.Router, a)
	return &api{t: t, r: a.Router}
}

func (a *api) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["error"]
}

func (a *api) seedBook(isbn string) models.Book {
	a.t.Helper()
	w := a.do(http.MethodPost, "/categories/", map[string]any{"name": "Fiction " + isbn})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	cat := decode[models.Category](a.t, w)

	w = a.do(http.MethodPost, "/books/", map[string]any{
		"title": "Dune", "author": "Frank Herbert", "isbn": isbn,
		"publication_year": 1965, "category_id": cat.ID,
	})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return decode[models.Book](a.t, w)
}

func Test_Scenario_BorrowReturnOverHTTP(t *testing.T) {
	a := newAPI(t)
	book := a.seedBook("978-0441013593")
	assert.True(t, book.Available)

	w := a.do(http.MethodPost, "/loans/", map[string]any{"book_id": book.ID, "borrower_name": "Alice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	loan := decode[map[string]any](t, w)
	assert.Equal(t, "Alice", loan["borrower_name"])
	assert.Equal(t, false, loan["is_returned"])
	assert.Nil(t, loan["return_date"])
	loanID := uint(loan["id"].(float64))

	w = a.do(http.MethodGet, fmt.Sprintf("/books/%d", book.ID), nil)
	assert.False(t, decode[models.Book](t, w).Available)

	w = a.do(http.MethodPost, "/loans/", map[string]any{"book_id": book.ID, "borrower_name": "Bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, lending.MsgBookUnavailable, errorOf(t, w))

	w = a.do(http.MethodPut, fmt.Sprintf("/loans/%d/return", loanID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, lending.MsgBookReturned, decode[map[string]string](t, w)["message"])

	w = a.do(http.MethodPut, fmt.Sprintf("/loans/%d/return", loanID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, lending.MsgAlreadyReturned, errorOf(t, w))

	w = a.do(http.MethodGet, fmt.Sprintf("/loans/%d", loanID), nil)
	returned := decode[map[string]any](t, w)
	assert.Equal(t, true, returned["is_returned"])
	assert.NotNil(t, returned["return_date"])

	w = a.do(http.MethodPost, "/loans", map[string]any{"book_id": book.ID, "borrower_name": "Bob"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/loans/", nil)
	assert.Len(t, decode[[]models.Loan](t, w), 2)
}

func Test_NotFoundMessages(t *testing.T) {
	a := newAPI(t)

	tests := []struct {
		method, path string
		body         any
		want         string
	}{
		{http.MethodGet, "/books/999", nil, lending.MsgBookNotFound},
		{http.MethodDelete, "/books/999", nil, lending.MsgBookNotFound},
		{http.MethodPut, "/books/999", map[string]any{
			"title": "x", "author": "y", "isbn": "z", "publication_year": 2000, "category_id": 1,
		}, lending.MsgBookNotFound},
		{http.MethodPut, "/loans/999/return", nil, lending.MsgLoanNotFound},
		{http.MethodGet, "/loans/999", nil, lending.MsgLoanNotFound},
		{http.MethodGet, "/categories/999", nil, lending.MsgCategoryNotFound},
		{http.MethodPost, "/loans/", map[string]any{"book_id": 999, "borrower_name": "Alice"}, lending.MsgBookNotFound},
		{http.MethodPost, "/books/", map[string]any{
			"title": "x", "author": "y", "isbn": "z", "publication_year": 2000, "category_id": 999,
		}, lending.MsgCategoryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := a.do(tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, tt.want, errorOf(t, w))
		})
	}
}

func Test_ValidationErrors(t *testing.T) {
	a := newAPI(t)

	tests := []struct {
		name, method, path string
		body               any
	}{
		{"category without name", http.MethodPost, "/categories/", map[string]any{"description": "x"}},
		{"book missing isbn", http.MethodPost, "/books/", map[string]any{
			"title": "x", "author": "y", "publication_year": 2000, "category_id": 1,
		}},
		{"malformed json", http.MethodPost, "/loans/", `{"book_id": `},
		{"loan blank borrower", http.MethodPost, "/loans/", map[string]any{"book_id": 1, "borrower_name": "  "}},
		{"negative skip", http.MethodGet, "/books/?skip=-1", nil},
		{"limit too large", http.MethodGet, "/loans/?limit=5000", nil},
		{"non numeric limit", http.MethodGet, "/categories/?limit=ten", nil},
		{"bad available", http.MethodGet, "/books/?available=maybe", nil},
		{"non numeric id", http.MethodGet, "/books/abc", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
			assert.NotEmpty(t, errorOf(t, w))
		})
	}
}

func Test_Conflicts(t *testing.T) {
	a := newAPI(t)
	book := a.seedBook("111")

	w := a.do(http.MethodPost, "/categories/", map[string]any{"name": "Fiction 111"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, lending.MsgCategoryExists, errorOf(t, w))

	w = a.do(http.MethodPost, "/books/", map[string]any{
		"title": "x", "author": "y", "isbn": "111", "publication_year": 2000, "category_id": book.CategoryID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, lending.MsgISBNExists, errorOf(t, w))

	w = a.do(http.MethodDelete, fmt.Sprintf("/categories/%d", book.CategoryID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, lending.MsgCategoryInUse, errorOf(t, w))
}

func Test_BookCRUD(t *testing.T) {
	a := newAPI(t)
	book := a.seedBook("222")

	w := a.do(http.MethodPut, fmt.Sprintf("/books/%d", book.ID), map[string]any{
		"title": "Dune Messiah", "author": "Frank Herbert", "isbn": "222",
		"publication_year": 1969, "category_id": book.CategoryID, "available": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Book](t, w)
	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.True(t, updated.Available)

	w = a.do(http.MethodGet, fmt.Sprintf("/books/?category_id=%d&available=true", book.CategoryID), nil)
	assert.Len(t, decode[[]models.Book](t, w), 1)

	w = a.do(http.MethodGet, "/books?limit=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = a.do(http.MethodDelete, fmt.Sprintf("/books/%d", book.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, lending.MsgBookDeleted, decode[map[string]string](t, w)["message"])

	w = a.do(http.MethodDelete, fmt.Sprintf("/books/%d", book.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodDelete, fmt.Sprintf("/categories/%d", book.CategoryID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, lending.MsgCategoryDeleted, decode[map[string]string](t, w)["message"])
}

func Test_DeleteBookWithLoanHistoryIsBlocked(t *testing.T) {
	a := newAPI(t)
	book := a.seedBook("333")

	w := a.do(http.MethodPost, "/loans/", map[string]any{"book_id": book.ID, "borrower_name": "Alice"})
	require.Equal(t, http.StatusOK, w.Code)
	loanID := decode[models.Loan](t, w).ID

	w = a.do(http.MethodDelete, fmt.Sprintf("/books/%d", book.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, lending.MsgBookOnLoan, errorOf(t, w))

	a.do(http.MethodPut, fmt.Sprintf("/loans/%d/return", loanID), nil)
	w = a.do(http.MethodDelete, fmt.Sprintf("/books/%d", book.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, lending.MsgBookHasHistory, errorOf(t, w))
}

func Test_ListPagingAndFilters(t *testing.T) {
	a := newAPI(t)
	for i := 0; i < 5; i++ {
		w := a.do(http.MethodPost, "/categories", map[string]any{"name": fmt.Sprintf("C%d", i)})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := a.do(http.MethodGet, "/categories/?skip=1&limit=2", nil)
	got := decode[[]models.Category](t, w)
	require.Len(t, got, 2)
	assert.Equal(t, "C1", got[0].Name)
	assert.Equal(t, "C2", got[1].Name)

	w = a.do(http.MethodGet, "/categories", nil)
	assert.Len(t, decode[[]models.Category](t, w), 5)

	book := a.seedBook("444")
	w = a.do(http.MethodPost, "/loans/", map[string]any{"book_id": book.ID, "borrower_name": "Alice"})
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, fmt.Sprintf("/loans/?book_id=%d&returned=false", book.ID), nil)
	assert.Len(t, decode[[]models.Loan](t, w), 1)
	w = a.do(http.MethodGet, "/loans/?returned=true", nil)
	assert.Empty(t, decode[[]models.Loan](t, w))
}

func Test_Health(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"store":"memory"}`, w.Body.String())
}

func Test_ZeroIDFilterMeansNoFilter(t *testing.T) {
	a := newAPI(t)
	a.seedBook("555")
	a.seedBook("666")

	w := a.do(http.MethodGet, "/books/?category_id=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Book](t, w), 2)

	w = a.do(http.MethodGet, "/loans/?book_id=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Loan](t, w))
}
