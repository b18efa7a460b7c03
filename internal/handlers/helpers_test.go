package handlers

import (
	"net/http/httptest"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/practice-advisor/backend/internal/auth"
)

type testValidator struct {
	v *validator.Validate
}

func (tv *testValidator) Validate(i interface{}) error {
	return tv.v.Struct(i)
}

type testRequest struct {
	method    string
	body      string
	params    map[string]string
	anonymous bool
}

func newTestContext(r testRequest) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}

	req := httptest.NewRequest(r.method, "/", strings.NewReader(r.body))
	if r.body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	names := make([]string, 0, len(r.params))
	values := make([]string, 0, len(r.params))
	for name, value := range r.params {
		names = append(names, name)
		values = append(values, value)
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)

	if !r.anonymous {
		c.Set(auth.ContextUserIDKey, uuid.New())
	}

	return c, rec
}
