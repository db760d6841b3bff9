package shared

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dujiao-next/settlement/internal/http/response"
	"github.com/dujiao-next/settlement/internal/service"

	"github.com/gin-gonic/gin"
)

func TestMapServiceErrorFollowsWrappedSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: product 3", service.ErrOutOfStock), response.CodeConflict},
		{fmt.Errorf("%w: order is not pending", service.ErrInvalidOrderState), response.CodeConflict},
		{fmt.Errorf("%w: bad mac", service.ErrInvalidSignature), response.CodeBadRequest},
		{fmt.Errorf("%w: timeout", service.ErrPaymentNotVerified), response.CodeUnavailable},
		{service.ErrOrderNotFound, response.CodeNotFound},
		{errors.New("disk full"), response.CodeInternal},
	}
	for _, tc := range cases {
		got := MapServiceError(tc.err, "fallback")
		if got.Code != tc.code {
			t.Fatalf("%v: want code %d got %d", tc.err, tc.code, got.Code)
		}
		if !errors.Is(got, tc.err) {
			t.Fatalf("%v: mapped error should keep the original chain", tc.err)
		}
	}
}

func TestMapServiceErrorPrefersAppError(t *testing.T) {
	inner := response.WrapError(response.CodeForbidden, "not your order", service.ErrOrderNotFound)
	got := MapServiceError(fmt.Errorf("handler: %w", inner), "fallback")
	if got.Code != response.CodeForbidden || got.Message != "not your order" {
		t.Fatalf("expected explicit app error, got %d %s", got.Code, got.Message)
	}
}

func TestQueryPaginationClamps(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query    string
		page     int
		pageSize int
	}{
		{"", 1, defaultPageSize},
		{"page=3&page_size=50", 3, 50},
		{"page=-1&page_size=1000", 1, maxPageSize},
		{"page=abc&page_size=0", 1, defaultPageSize},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
		page, pageSize := QueryPagination(c)
		if page != tc.page || pageSize != tc.pageSize {
			t.Fatalf("%q: want %d/%d got %d/%d", tc.query, tc.page, tc.pageSize, page, pageSize)
		}
	}
}

func TestParamUintRejectsZero(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "0"}}
	if _, ok := ParamUint(c, "id"); ok {
		t.Fatalf("expected zero id rejected")
	}
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Params = gin.Params{{Key: "id", Value: "17"}}
	if id, ok := ParamUint(c2, "id"); !ok || id != 17 {
		t.Fatalf("expected id 17, got %d ok=%v", id, ok)
	}
}
